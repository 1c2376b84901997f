// ABOUTME: BiometricGate: optional second factor for app unlock, seed reveal, and deletion.
// ABOUTME: Every verification signs a fresh single-use challenge checked against the stored key.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/ssh"

	"github.com/oktaviaorg/subnavis/vault"
)

// Credential is the locally stored reference to a platform credential. It holds
// no secret material.
type Credential struct {
	ID         string    `json:"credentialId"`
	PublicKey  string    `json:"publicKey"`
	Type       Kind      `json:"type"`
	Enabled    bool      `json:"enabled"`
	UserHandle string    `json:"userHandle"`
	Created    time.Time `json:"created"`
}

// ErrNoCredential is returned by a CredentialStore that holds nothing.
var ErrNoCredential = errors.New("no biometric credential registered")

// CredentialStore persists the single device credential.
type CredentialStore interface {
	LoadCredential(ctx context.Context) (Credential, error)
	SaveCredential(ctx context.Context, c Credential) error
	DeleteCredential(ctx context.Context) error
}

// Result is the outcome of Verify.
type Result int

const (
	Failure Result = iota
	Success
	Cancelled
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Cancelled:
		return "cancelled"
	}
	return "failure"
}

// DefaultChallengeTTL bounds how long an issued challenge may be answered.
const DefaultChallengeTTL = 2 * time.Minute

type challenge struct {
	data    []byte
	expires time.Time
}

// Gate issues challenges, checks assertions, and owns the credential lifecycle.
type Gate struct {
	auth  Authenticator
	creds CredentialStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	pending map[string]challenge
}

// Option configures a Gate.
type Option func(*Gate)

// WithChallengeTTL overrides DefaultChallengeTTL.
func WithChallengeTTL(d time.Duration) Option {
	return func(g *Gate) { g.ttl = d }
}

// NewGate wires an authenticator to a credential store. A nil authenticator is
// treated as Unavailable.
func NewGate(auth Authenticator, creds CredentialStore, opts ...Option) *Gate {
	if auth == nil {
		auth = Unavailable{}
	}
	g := &Gate{
		auth:    auth,
		creds:   creds,
		ttl:     DefaultChallengeTTL,
		now:     time.Now,
		pending: make(map[string]challenge),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsAvailable probes the platform. Probe errors read as unavailable.
func (g *Gate) IsAvailable(ctx context.Context) Availability {
	av, err := g.auth.Probe(ctx)
	if err != nil {
		return Availability{Kind: KindUnknown}
	}
	return av
}

// Enabled reports whether a registered, enabled credential guards the app.
func (g *Gate) Enabled(ctx context.Context) (bool, error) {
	c, err := g.creds.LoadCredential(ctx)
	if errors.Is(err, ErrNoCredential) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.Enabled, nil
}

// Credential returns the stored credential.
func (g *Gate) Credential(ctx context.Context) (Credential, error) {
	return g.creds.LoadCredential(ctx)
}

// Register creates a device-bound credential and stores its public half.
func (g *Gate) Register(ctx context.Context) (Credential, error) {
	av := g.IsAvailable(ctx)
	if !av.Available {
		return Credential{}, &vault.PlatformError{Capability: "authenticator", Err: errors.New("no platform authenticator")}
	}
	id, data, err := g.issue()
	if err != nil {
		return Credential{}, err
	}
	defer g.drop(id)

	handle := uuid.NewString()
	att, err := g.auth.Create(ctx, CreateRequest{UserHandle: handle, Challenge: data, UserVerification: true})
	if err != nil {
		return Credential{}, classify(err)
	}
	pub, err := parseKey(att.AuthorizedKey)
	if err != nil {
		return Credential{}, &vault.AuthError{Reason: "biometric", Cause: err}
	}
	if err := checkSignature(pub, att.CredentialID, data, att.Signature); err != nil {
		return Credential{}, &vault.AuthError{Reason: "biometric", Cause: err}
	}
	kind := att.Kind
	if kind == "" {
		kind = av.Kind
	}
	c := Credential{
		ID:         att.CredentialID,
		PublicKey:  att.AuthorizedKey,
		Type:       kind,
		Enabled:    true,
		UserHandle: handle,
		Created:    g.now().UTC(),
	}
	if err := g.creds.SaveCredential(ctx, c); err != nil {
		return Credential{}, fmt.Errorf("save credential: %w", err)
	}
	return c, nil
}

// Verify asks the authenticator to sign a fresh challenge and checks the
// signature against the stored credential. The error is nil only on Success.
func (g *Gate) Verify(ctx context.Context, reason string) (Result, error) {
	c, err := g.creds.LoadCredential(ctx)
	if err != nil {
		return Failure, &vault.AuthError{Reason: "biometric", Cause: err}
	}
	pub, err := parseKey(c.PublicKey)
	if err != nil {
		return Failure, &vault.AuthError{Reason: "biometric", Cause: err}
	}

	id, data, err := g.issue()
	if err != nil {
		return Failure, err
	}
	as, err := g.auth.Assert(ctx, AssertRequest{
		CredentialID:     c.ID,
		Challenge:        data,
		Reason:           reason,
		UserVerification: true,
	})
	// consume before looking at the result so the challenge is never reusable
	issued, live := g.consume(id)
	if err != nil {
		err = classify(err)
		if errors.Is(err, vault.ErrCancelled) {
			return Cancelled, err
		}
		return Failure, err
	}
	if !live {
		return Failure, &vault.AuthError{Reason: "biometric", Cause: errors.New("challenge expired")}
	}
	if as.CredentialID != c.ID {
		return Failure, &vault.AuthError{Reason: "biometric", Cause: errors.New("assertion from unexpected credential")}
	}
	if err := checkSignature(pub, c.ID, issued, as.Signature); err != nil {
		return Failure, &vault.AuthError{Reason: "biometric", Cause: err}
	}
	return Success, nil
}

// Require runs Verify when the gate is enabled and passes through otherwise.
// Any result other than Success blocks the caller.
func (g *Gate) Require(ctx context.Context, reason string) error {
	on, err := g.Enabled(ctx)
	if err != nil {
		return err
	}
	if !on {
		return nil
	}
	_, err = g.Verify(ctx, reason)
	return err
}

// Disable forgets the local credential reference. The OS enrollment is untouched.
func (g *Gate) Disable(ctx context.Context) error {
	if err := g.creds.DeleteCredential(ctx); err != nil && !errors.Is(err, ErrNoCredential) {
		return err
	}
	g.mu.Lock()
	g.pending = make(map[string]challenge)
	g.mu.Unlock()
	return nil
}

// Pending returns the number of outstanding challenges.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Gate) issue() (string, []byte, error) {
	data, err := vault.RandomBytes(32)
	if err != nil {
		return "", nil, err
	}
	id := ulid.Make().String()
	g.mu.Lock()
	g.pending[id] = challenge{data: data, expires: g.now().Add(g.ttl)}
	g.mu.Unlock()
	return id, data, nil
}

// consume atomically loads and deletes a challenge. The second result is false
// when it was unknown or expired.
func (g *Gate) consume(id string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.pending[id]
	delete(g.pending, id)
	if !ok || !g.now().Before(ch.expires) {
		return nil, false
	}
	return ch.data, true
}

func (g *Gate) drop(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

func parseKey(authorizedKey string) (ssh.PublicKey, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKey))
	if err != nil {
		return nil, fmt.Errorf("parse credential key: %w", err)
	}
	return pub, nil
}

func checkSignature(pub ssh.PublicKey, credentialID string, data, sigBytes []byte) error {
	sig := &ssh.Signature{}
	if err := ssh.Unmarshal(sigBytes, sig); err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	return pub.Verify(signedData(credentialID, data), sig)
}

// classify maps authenticator errors onto the vault taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, vault.ErrCancelled):
		return &vault.AuthError{Reason: "cancelled", Cause: err}
	case errors.Is(err, vault.ErrPlatformUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &vault.AuthError{Reason: "cancelled", Cause: fmt.Errorf("%w: %w", vault.ErrCancelled, err)}
	}
	return &vault.AuthError{Reason: "biometric", Cause: err}
}
