// ABOUTME: Platform authenticator port and the software implementations behind it.
// ABOUTME: Credentials are ssh-encoded public keys; private halves never leave the authenticator.
package biometric

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/oktaviaorg/subnavis/vault"
)

// Kind is the advisory authenticator class shown to the user.
type Kind string

const (
	KindFace        Kind = "face"
	KindFingerprint Kind = "fingerprint"
	KindHello       Kind = "hello"
	KindSecurityKey Kind = "security-key"
	KindUnknown     Kind = "unknown"
)

// Availability is the result of a capability probe.
type Availability struct {
	Available bool
	Kind      Kind
}

// CreateRequest asks the authenticator to mint a new device-bound credential.
type CreateRequest struct {
	UserHandle       string
	Challenge        []byte
	UserVerification bool
}

// Attestation is the public result of credential creation. Signature is a
// self-attestation over the creation challenge.
type Attestation struct {
	CredentialID  string
	AuthorizedKey string // ssh authorized_keys encoding
	Kind          Kind
	Signature     []byte // ssh wire-format signature
}

// AssertRequest asks the authenticator to sign a challenge with an existing credential.
type AssertRequest struct {
	CredentialID     string
	Challenge        []byte
	Reason           string
	UserVerification bool
}

// Assertion is a signed challenge.
type Assertion struct {
	CredentialID string
	Signature    []byte // ssh wire-format signature
}

// Authenticator is the platform credential API. Implementations return an error
// matching vault.ErrCancelled when the user dismisses the prompt and one matching
// vault.ErrPlatformUnavailable when the capability is missing.
type Authenticator interface {
	Probe(ctx context.Context) (Availability, error)
	Create(ctx context.Context, req CreateRequest) (Attestation, error)
	Assert(ctx context.Context, req AssertRequest) (Assertion, error)
}

// signedData binds a challenge to the credential it was issued for.
func signedData(credentialID string, challenge []byte) []byte {
	out := make([]byte, 0, len("subnavis-gate:v1|")+len(credentialID)+1+len(challenge))
	out = append(out, "subnavis-gate:v1|"...)
	out = append(out, credentialID...)
	out = append(out, '|')
	return append(out, challenge...)
}

func signWith(signer ssh.Signer, credentialID string, challenge []byte) ([]byte, error) {
	sig, err := signer.Sign(rand.Reader, signedData(credentialID, challenge))
	if err != nil {
		return nil, err
	}
	return ssh.Marshal(sig), nil
}

// Unavailable is an Authenticator for platforms without one.
type Unavailable struct{}

var errNoAuthenticator = &vault.PlatformError{Capability: "authenticator", Err: errors.New("no platform authenticator")}

func (Unavailable) Probe(context.Context) (Availability, error) {
	return Availability{Available: false, Kind: KindUnknown}, nil
}

func (Unavailable) Create(context.Context, CreateRequest) (Attestation, error) {
	return Attestation{}, errNoAuthenticator
}

func (Unavailable) Assert(context.Context, AssertRequest) (Assertion, error) {
	return Assertion{}, errNoAuthenticator
}

// ConfirmFunc asks the user to approve an operation. Returning an error matching
// vault.ErrCancelled means the user declined.
type ConfirmFunc func(ctx context.Context, reason string) error

// SoftwareAuthenticator keeps ed25519 credentials in memory. It stands in for a
// platform authenticator where none exists.
type SoftwareAuthenticator struct {
	Kind    Kind
	Confirm ConfirmFunc

	mu      sync.Mutex
	signers map[string]ssh.Signer
}

// NewSoftwareAuthenticator returns an authenticator that approves every prompt
// confirm approves. A nil confirm approves everything.
func NewSoftwareAuthenticator(kind Kind, confirm ConfirmFunc) *SoftwareAuthenticator {
	return &SoftwareAuthenticator{Kind: kind, Confirm: confirm, signers: make(map[string]ssh.Signer)}
}

func (a *SoftwareAuthenticator) Probe(context.Context) (Availability, error) {
	return Availability{Available: true, Kind: a.Kind}, nil
}

func (a *SoftwareAuthenticator) Create(ctx context.Context, req CreateRequest) (Attestation, error) {
	if err := a.confirm(ctx, "register this device"); err != nil {
		return Attestation{}, err
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Attestation{}, &vault.PlatformError{Capability: "authenticator", Err: err}
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return Attestation{}, err
	}
	id := ssh.FingerprintSHA256(signer.PublicKey())
	sig, err := signWith(signer, id, req.Challenge)
	if err != nil {
		return Attestation{}, err
	}

	a.mu.Lock()
	a.signers[id] = signer
	a.mu.Unlock()

	return Attestation{
		CredentialID:  id,
		AuthorizedKey: strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey()))),
		Kind:          a.Kind,
		Signature:     sig,
	}, nil
}

func (a *SoftwareAuthenticator) Assert(ctx context.Context, req AssertRequest) (Assertion, error) {
	a.mu.Lock()
	signer, ok := a.signers[req.CredentialID]
	a.mu.Unlock()
	if !ok {
		return Assertion{}, fmt.Errorf("unknown credential %s", req.CredentialID)
	}
	if err := a.confirm(ctx, req.Reason); err != nil {
		return Assertion{}, err
	}
	sig, err := signWith(signer, req.CredentialID, req.Challenge)
	if err != nil {
		return Assertion{}, err
	}
	return Assertion{CredentialID: req.CredentialID, Signature: sig}, nil
}

func (a *SoftwareAuthenticator) confirm(ctx context.Context, reason string) error {
	if a.Confirm == nil {
		return ctx.Err()
	}
	return a.Confirm(ctx, reason)
}

// KeyFileAuthenticator uses an OpenSSH private key on disk as the device-bound
// credential. The key never leaves the file; only its public half is registered.
type KeyFileAuthenticator struct {
	Path       string
	Passphrase []byte
	Confirm    ConfirmFunc
}

func (a *KeyFileAuthenticator) Probe(context.Context) (Availability, error) {
	if _, err := a.signer(); err != nil {
		return Availability{Available: false, Kind: KindSecurityKey}, nil
	}
	return Availability{Available: true, Kind: KindSecurityKey}, nil
}

func (a *KeyFileAuthenticator) Create(ctx context.Context, req CreateRequest) (Attestation, error) {
	signer, err := a.signer()
	if err != nil {
		return Attestation{}, &vault.PlatformError{Capability: "authenticator", Err: err}
	}
	if err := a.confirm(ctx, "register this device"); err != nil {
		return Attestation{}, err
	}
	id := ssh.FingerprintSHA256(signer.PublicKey())
	sig, err := signWith(signer, id, req.Challenge)
	if err != nil {
		return Attestation{}, err
	}
	return Attestation{
		CredentialID:  id,
		AuthorizedKey: strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey()))),
		Kind:          KindSecurityKey,
		Signature:     sig,
	}, nil
}

func (a *KeyFileAuthenticator) Assert(ctx context.Context, req AssertRequest) (Assertion, error) {
	signer, err := a.signer()
	if err != nil {
		return Assertion{}, &vault.PlatformError{Capability: "authenticator", Err: err}
	}
	if id := ssh.FingerprintSHA256(signer.PublicKey()); id != req.CredentialID {
		return Assertion{}, fmt.Errorf("key file %s does not hold credential %s", a.Path, req.CredentialID)
	}
	if err := a.confirm(ctx, req.Reason); err != nil {
		return Assertion{}, err
	}
	sig, err := signWith(signer, req.CredentialID, req.Challenge)
	if err != nil {
		return Assertion{}, err
	}
	return Assertion{CredentialID: req.CredentialID, Signature: sig}, nil
}

func (a *KeyFileAuthenticator) confirm(ctx context.Context, reason string) error {
	if a.Confirm == nil {
		return ctx.Err()
	}
	return a.Confirm(ctx, reason)
}

func (a *KeyFileAuthenticator) signer() (ssh.Signer, error) {
	if a.Path == "" {
		return nil, errors.New("key path required")
	}
	// #nosec G304 -- the user chooses which key file acts as their authenticator.
	keyBytes, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	if len(a.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(keyBytes, a.Passphrase)
	}
	return ssh.ParsePrivateKey(keyBytes)
}

// KeyFileEncrypted reports whether the key at path needs a passphrase.
// An unreadable file reports false; Probe surfaces that as unavailable.
func KeyFileEncrypted(path string) bool {
	// #nosec G304 -- the user chooses which key file acts as their authenticator.
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	_, err = ssh.ParsePrivateKey(keyBytes)
	var missing *ssh.PassphraseMissingError
	return errors.As(err, &missing)
}

// GenerateKeyFile writes a fresh unencrypted ed25519 OpenSSH key to path with
// 0600 permissions. It refuses to overwrite an existing file.
func GenerateKeyFile(path, comment string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists: %w", path, os.ErrExist)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return &vault.PlatformError{Capability: "authenticator", Err: err}
	}
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o600)
}
