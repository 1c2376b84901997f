// ABOUTME: Controller owns application state for key custody: records, gate, and the reveal slot.
// ABOUTME: Every user-facing wallet operation goes through here.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/oktaviaorg/subnavis/biometric"
	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/vault"
)

// Deps are the environment capabilities the controller consumes.
type Deps struct {
	KV            store.KV
	Authenticator biometric.Authenticator // nil means no platform authenticator
	Logger        *slog.Logger
}

// Controller is the single owner of wallet state.
type Controller struct {
	cfg     Config
	wallets *store.WalletStore
	gate    *biometric.Gate
	slot    *vault.SecretSlot
	limiter *attemptLimiter
	log     *slog.Logger
	stop    context.CancelFunc

	mu       sync.Mutex
	unlocked bool
}

// New wires a controller over deps.KV. The wallet collection and the biometric
// credential share that KV.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.KV == nil {
		return nil, errors.New("wallet: KV is required")
	}
	if cfg.Network.AddressPrefix == "" {
		cfg.Network = vault.Bittensor
	}
	if cfg.WordCount == 0 {
		cfg.WordCount = vault.Words24
	}
	if cfg.BackupAttempts <= 0 {
		cfg.BackupAttempts = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Controller{
		cfg:     cfg,
		gate:    biometric.NewGate(deps.Authenticator, store.NewCredentialStore(deps.KV)),
		slot:    vault.NewSecretSlot(cfg.RevealTTL),
		limiter: newAttemptLimiter(cfg.Attempts),
		log:     logger,
	}
	c.wallets = store.NewWalletStore(deps.KV,
		store.WithNetwork(cfg.Network),
		store.WithEmptyHook(c.lastWalletDeleted),
	)
	if err := c.wallets.Load(context.Background()); err != nil {
		return nil, err
	}
	c.slot.OnExpire(func(owner string) {
		c.log.Info("reveal expired", "wallet", owner)
	})
	if cfg.JanitorEvery > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.stop = cancel
		c.gate.StartJanitor(ctx, cfg.JanitorEvery)
	}
	return c, nil
}

// Close wipes any revealed phrase and stops background work.
func (c *Controller) Close() error {
	c.slot.Clear()
	if c.stop != nil {
		c.stop()
	}
	return nil
}

// Unlock passes the app-entry gate. Without an enabled credential it always succeeds.
func (c *Controller) Unlock(ctx context.Context) error {
	if err := c.gate.Require(ctx, "unlock wallet"); err != nil {
		return err
	}
	c.mu.Lock()
	c.unlocked = true
	c.mu.Unlock()
	return nil
}

// Lock requires Unlock again and drops any revealed phrase.
func (c *Controller) Lock() {
	c.mu.Lock()
	c.unlocked = false
	c.mu.Unlock()
	c.slot.Clear()
}

func (c *Controller) requireUnlocked(ctx context.Context) error {
	on, err := c.gated(ctx)
	if err != nil || !on {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.unlocked {
		return vault.ErrLocked
	}
	return nil
}

// gated reports whether a stored credential guards the wallets. The
// BiometricGating feature flag only decides whether enrolment is offered.
func (c *Controller) gated(ctx context.Context) (bool, error) {
	return c.gate.Enabled(ctx)
}

func (c *Controller) requireGate(ctx context.Context, reason string) error {
	return c.gate.Require(ctx, reason)
}

// List returns every wallet record.
func (c *Controller) List(ctx context.Context) ([]store.WalletRecord, error) {
	if err := c.requireUnlocked(ctx); err != nil {
		return nil, err
	}
	return c.wallets.List(ctx)
}

// Active returns the selected wallet and its index.
func (c *Controller) Active(ctx context.Context) (store.WalletRecord, int, error) {
	if err := c.requireUnlocked(ctx); err != nil {
		return store.WalletRecord{}, -1, err
	}
	return c.wallets.Active(ctx)
}

// Select makes index the active wallet.
func (c *Controller) Select(ctx context.Context, index int) error {
	if err := c.requireUnlocked(ctx); err != nil {
		return err
	}
	rec, err := c.wallets.Get(ctx, index)
	if err != nil {
		return err
	}
	if !c.slot.Empty() && !c.slot.Holds(rec.ID) {
		c.slot.Clear()
	}
	return c.wallets.Select(ctx, index)
}

// Rename changes the display name of the wallet at index.
func (c *Controller) Rename(ctx context.Context, index int, name string) error {
	if err := c.requireUnlocked(ctx); err != nil {
		return err
	}
	return c.wallets.Rename(ctx, index, name)
}

// ImportWallet validates phrase, derives its address, encrypts it under
// password, and persists the record.
func (c *Controller) ImportWallet(ctx context.Context, name, phrase string, password []byte) (store.WalletRecord, error) {
	if err := c.requireUnlocked(ctx); err != nil {
		return store.WalletRecord{}, err
	}
	if err := checkName(name); err != nil {
		return store.WalletRecord{}, err
	}
	if err := c.cfg.Policy.Check(password); err != nil {
		return store.WalletRecord{}, err
	}
	norm, err := vault.ParseMnemonic(phrase)
	if err != nil {
		return store.WalletRecord{}, err
	}
	rec, err := c.persist(ctx, name, []byte(norm), password)
	if err != nil {
		return store.WalletRecord{}, err
	}
	c.log.Info("wallet imported", "wallet", rec.ID, "address", rec.Address)
	return rec, nil
}

// persist derives the address from phrase, encrypts phrase, and writes the
// record. Address and blob always come from the same phrase.
func (c *Controller) persist(ctx context.Context, name string, phrase, password []byte) (store.WalletRecord, error) {
	addr, err := vault.DeriveAddress(string(phrase), c.cfg.Network)
	if err != nil {
		return store.WalletRecord{}, err
	}
	blob, err := vault.Encrypt(ctx, phrase, password)
	if err != nil {
		return store.WalletRecord{}, err
	}
	sec := vault.DefaultKDFParams()
	rec, _, err := c.wallets.Create(ctx, store.WalletRecord{
		Name:              name,
		Address:           addr,
		EncryptedMnemonic: blob,
		Security:          &sec,
	})
	return rec, err
}

// TrackAddress adds a watch-only wallet. No key material is involved.
func (c *Controller) TrackAddress(ctx context.Context, name, address string) (store.WalletRecord, error) {
	if err := c.requireUnlocked(ctx); err != nil {
		return store.WalletRecord{}, err
	}
	if err := checkName(name); err != nil {
		return store.WalletRecord{}, err
	}
	address = strings.TrimSpace(address)
	if err := c.cfg.Network.ValidateAddress(address); err != nil {
		return store.WalletRecord{}, err
	}
	rec, _, err := c.wallets.Create(ctx, store.WalletRecord{Name: name, Address: address, WatchOnly: true})
	if err != nil {
		return store.WalletRecord{}, err
	}
	c.log.Info("wallet tracked", "wallet", rec.ID, "address", rec.Address, "watch_only", true)
	return rec, nil
}

// RevealMnemonic decrypts the phrase of the wallet at index and holds it in the
// reveal slot until the TTL passes. The returned bytes belong to the caller,
// who should wipe them when done.
func (c *Controller) RevealMnemonic(ctx context.Context, index int, password []byte) ([]byte, error) {
	rec, err := c.keyedRecord(ctx, index, "reveal")
	if err != nil {
		return nil, err
	}
	if err := c.requireGate(ctx, "reveal recovery phrase"); err != nil {
		return nil, err
	}
	// only one phrase may be resident
	c.slot.Clear()

	phrase, err := c.open(ctx, rec, password)
	if err != nil {
		return nil, err
	}
	defer vault.Wipe(phrase)
	if err := c.slot.Put(rec.ID, phrase); err != nil {
		return nil, err
	}
	c.log.Info("mnemonic revealed", "wallet", rec.ID, "ttl", c.cfg.RevealTTL)
	return append([]byte(nil), phrase...), nil
}

// ReadRevealed returns the phrase previously revealed for the wallet at index,
// as long as it has not expired.
func (c *Controller) ReadRevealed(ctx context.Context, index int) ([]byte, error) {
	if err := c.requireUnlocked(ctx); err != nil {
		return nil, err
	}
	rec, err := c.wallets.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	return c.slot.Read(rec.ID)
}

// HideRevealed wipes the reveal slot.
func (c *Controller) HideRevealed() {
	c.slot.Clear()
}

// Sign signs msg with the sr25519 key of the wallet at index. It is gated like
// a reveal. No transaction format is implied.
func (c *Controller) Sign(ctx context.Context, index int, password, msg []byte) ([64]byte, error) {
	rec, err := c.keyedRecord(ctx, index, "sign")
	if err != nil {
		return [64]byte{}, err
	}
	if err := c.requireGate(ctx, "sign with "+rec.Name); err != nil {
		return [64]byte{}, err
	}
	phrase, err := c.open(ctx, rec, password)
	if err != nil {
		return [64]byte{}, err
	}
	defer vault.Wipe(phrase)

	kp, err := vault.KeypairFromMnemonic(string(phrase))
	if err != nil {
		return [64]byte{}, err
	}
	sig, err := kp.Sign(msg)
	if err != nil {
		return [64]byte{}, err
	}
	c.log.Info("message signed", "wallet", rec.ID, "address", rec.Address)
	return sig, nil
}

// keyedRecord loads the record at index for an operation that needs its key.
// Watch-only records fail before any throttle, gate, or crypto work.
func (c *Controller) keyedRecord(ctx context.Context, index int, op string) (store.WalletRecord, error) {
	if err := c.requireUnlocked(ctx); err != nil {
		return store.WalletRecord{}, err
	}
	rec, err := c.wallets.Get(ctx, index)
	if err != nil {
		return store.WalletRecord{}, err
	}
	if rec.WatchOnly || rec.EncryptedMnemonic == "" {
		return store.WalletRecord{}, fmt.Errorf("%s %q: %w", op, rec.Name, vault.ErrReadOnly)
	}
	if !c.limiter.allow(rec.ID) {
		c.log.Warn("password attempts throttled", "wallet", rec.ID, "op", op)
		return store.WalletRecord{}, &vault.AuthError{Reason: "too many attempts"}
	}
	return rec, nil
}

// open decrypts rec's blob and checks the phrase still derives rec's address.
func (c *Controller) open(ctx context.Context, rec store.WalletRecord, password []byte) ([]byte, error) {
	phrase, err := vault.Decrypt(ctx, rec.EncryptedMnemonic, password)
	if err != nil {
		var de *vault.DecryptError
		if errors.As(err, &de) {
			c.log.Warn("decrypt failed", "wallet", rec.ID, "integrity", de.Integrity, "detail", de.Diagnostic())
		}
		return nil, err
	}
	addr, err := vault.DeriveAddress(string(phrase), c.cfg.Network)
	if err != nil || addr != rec.Address {
		vault.Wipe(phrase)
		c.log.Error("stored address does not match decrypted phrase", "wallet", rec.ID)
		return nil, &vault.DecryptError{Integrity: true, Cause: errors.New("derived address mismatch")}
	}
	return phrase, nil
}

// DeleteWallet removes the wallet at index after the gate confirms. Removing
// the last wallet also disables biometric gating.
func (c *Controller) DeleteWallet(ctx context.Context, index int) error {
	if err := c.requireUnlocked(ctx); err != nil {
		return err
	}
	rec, err := c.wallets.Get(ctx, index)
	if err != nil {
		return err
	}
	if err := c.requireGate(ctx, "delete "+rec.Name); err != nil {
		return err
	}
	removed, err := c.wallets.Delete(ctx, index)
	if removed.ID != "" {
		if c.slot.Holds(removed.ID) {
			c.slot.Clear()
		}
		c.limiter.forget(removed.ID)
		c.log.Info("wallet deleted", "wallet", removed.ID, "address", removed.Address, "watch_only", removed.WatchOnly)
	}
	return err
}

func (c *Controller) lastWalletDeleted(ctx context.Context) error {
	if err := c.gate.Disable(ctx); err != nil {
		return err
	}
	c.log.Info("biometric disabled", "reason", "last wallet deleted")
	return nil
}

// BiometricStatus reports platform support and whether gating is active.
type BiometricStatus struct {
	Available bool
	Kind      biometric.Kind
	Enabled   bool
}

func (c *Controller) BiometricStatus(ctx context.Context) (BiometricStatus, error) {
	av := c.gate.IsAvailable(ctx)
	on, err := c.gated(ctx)
	if err != nil {
		return BiometricStatus{}, err
	}
	return BiometricStatus{Available: av.Available, Kind: av.Kind, Enabled: on}, nil
}

// EnableBiometric registers a platform credential. It needs at least one
// wallet to protect.
func (c *Controller) EnableBiometric(ctx context.Context) (biometric.Credential, error) {
	if !c.cfg.Features.BiometricGating {
		return biometric.Credential{}, &vault.PlatformError{Capability: "biometric gating", Err: errors.New("disabled by configuration")}
	}
	if err := c.requireUnlocked(ctx); err != nil {
		return biometric.Credential{}, err
	}
	n, err := c.wallets.Len(ctx)
	if err != nil {
		return biometric.Credential{}, err
	}
	if n == 0 {
		return biometric.Credential{}, &vault.ValidationError{Field: "biometric", Msg: "create or import a wallet first"}
	}
	cred, err := c.gate.Register(ctx)
	if err != nil {
		return biometric.Credential{}, err
	}
	c.mu.Lock()
	c.unlocked = true
	c.mu.Unlock()
	c.log.Info("biometric enabled", "type", cred.Type)
	return cred, nil
}

// DisableBiometric removes the credential after it verifies one last time.
func (c *Controller) DisableBiometric(ctx context.Context) error {
	on, err := c.gated(ctx)
	if err != nil || !on {
		return err
	}
	if err := c.gate.Require(ctx, "disable biometric unlock"); err != nil {
		return err
	}
	if err := c.gate.Disable(ctx); err != nil {
		return err
	}
	c.log.Info("biometric disabled", "reason", "user")
	return nil
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &vault.ValidationError{Field: "name", Msg: "must not be empty"}
	}
	return nil
}
