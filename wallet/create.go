// ABOUTME: Wallet creation: generate, show once, verify the user's backup, then persist.
// ABOUTME: Abandoning at any step leaves no record and no resident phrase.
package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/vault"
)

// BackupPrompter is the UI side of the backup ceremony. Returning an error that
// matches vault.ErrCancelled abandons creation.
type BackupPrompter interface {
	ShowMnemonic(ctx context.Context, words []string) error
	AskWords(ctx context.Context, positions []int) ([]string, error)
}

// PendingWallet is a generated wallet that is not yet persisted.
type PendingWallet struct {
	c        *Controller
	name     string
	password []byte
	verifier *vault.BackupVerifier
	phrase   []byte

	mu   sync.Mutex
	done bool
}

var errPendingClosed = errors.New("pending wallet already committed or abandoned")

// BeginCreate generates a phrase of wordCount words (0 means the configured
// default) and starts the backup ceremony.
func (c *Controller) BeginCreate(ctx context.Context, name string, password []byte, wordCount int) (*PendingWallet, error) {
	if err := c.requireUnlocked(ctx); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := c.cfg.Policy.Check(password); err != nil {
		return nil, err
	}
	if wordCount == 0 {
		wordCount = c.cfg.WordCount
	}
	phrase, err := vault.NewMnemonic(wordCount)
	if err != nil {
		return nil, err
	}
	v, err := vault.NewBackupVerifier(phrase, c.cfg.ChallengeSize)
	if err != nil {
		return nil, err
	}
	return &PendingWallet{
		c:        c,
		name:     name,
		password: append([]byte(nil), password...),
		verifier: v,
		phrase:   []byte(phrase),
	}, nil
}

// Words shows the phrase. It works exactly once.
func (p *PendingWallet) Words() ([]string, error) {
	return p.verifier.Display()
}

// Challenge returns the 1-based word positions the user must re-type.
func (p *PendingWallet) Challenge() ([]int, error) {
	return p.verifier.BeginVerification()
}

// Verify checks the answers for Challenge's positions.
func (p *PendingWallet) Verify(answers []string) error {
	return p.verifier.Submit(answers)
}

// State reports where the backup ceremony is.
func (p *PendingWallet) State() vault.BackupState {
	return p.verifier.State()
}

// Commit encrypts and persists the wallet. With backup verification on, the
// ceremony must have reached Verified; otherwise the phrase must have been shown.
func (p *PendingWallet) Commit(ctx context.Context) (store.WalletRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return store.WalletRecord{}, errPendingClosed
	}
	state := p.verifier.State()
	if p.c.cfg.Features.BackupVerification && state != vault.BackupVerified {
		return store.WalletRecord{}, &vault.ValidationError{Field: "backup", Msg: "recovery phrase backup not verified"}
	}
	if state == vault.BackupGenerated || state == vault.BackupAbandoned {
		return store.WalletRecord{}, &vault.ValidationError{Field: "backup", Msg: "recovery phrase was never shown"}
	}

	rec, err := p.c.persist(ctx, p.name, p.phrase, p.password)
	if err != nil {
		return store.WalletRecord{}, err
	}
	p.closeLocked()
	p.verifier.Release()
	p.c.log.Info("wallet created", "wallet", rec.ID, "address", rec.Address, "watch_only", false)
	return rec, nil
}

// Abandon discards the phrase. No record is written.
func (p *PendingWallet) Abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.verifier.Abandon()
	p.closeLocked()
}

func (p *PendingWallet) closeLocked() {
	vault.Wipe(p.phrase)
	vault.Wipe(p.password)
	p.phrase = nil
	p.password = nil
	p.done = true
}

// CreateWallet runs the whole creation flow through prompter: show the phrase,
// ask for the challenge words until they match, then persist. After
// Config.BackupAttempts wrong answers the wallet is abandoned.
func (c *Controller) CreateWallet(ctx context.Context, name string, password []byte, wordCount int, prompter BackupPrompter) (store.WalletRecord, error) {
	p, err := c.BeginCreate(ctx, name, password, wordCount)
	if err != nil {
		return store.WalletRecord{}, err
	}
	defer p.Abandon()

	words, err := p.Words()
	if err != nil {
		return store.WalletRecord{}, err
	}
	if err := prompter.ShowMnemonic(ctx, words); err != nil {
		return store.WalletRecord{}, err
	}
	if c.cfg.Features.BackupVerification {
		if err := p.runChallenge(ctx, prompter, c.cfg.BackupAttempts); err != nil {
			return store.WalletRecord{}, err
		}
	}
	return p.Commit(ctx)
}

func (p *PendingWallet) runChallenge(ctx context.Context, prompter BackupPrompter, attempts int) error {
	positions, err := p.Challenge()
	if err != nil {
		return err
	}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		answers, err := prompter.AskWords(ctx, positions)
		if err != nil {
			return err
		}
		err = p.Verify(answers)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vault.ErrValidation) || i+1 >= attempts {
			return err
		}
	}
}
