// ABOUTME: Time-boxed holder for the one decrypted mnemonic allowed in memory.
// ABOUTME: Contents are sealed under an ephemeral key and wiped on expiry.
package vault

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// DefaultRevealTTL bounds how long a revealed mnemonic stays readable.
const DefaultRevealTTL = 5 * time.Minute

// SlotStatus describes what the slot currently holds.
type SlotStatus struct {
	Owner      string
	Expires    time.Time
	LastAccess time.Time
}

// SecretSlot holds at most one secret at a time. The secret is kept encrypted
// with XChaCha20-Poly1305 under a random per-Put key and only opened on Read.
// The expiry is absolute: reads update LastAccess but never extend it.
type SecretSlot struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	owner    string
	key      [chacha20poly1305.KeySize]byte
	nonce    []byte
	sealed   []byte
	expires  time.Time
	lastUsed time.Time
	timer    *time.Timer
	onExpire []func(owner string)
}

// NewSecretSlot returns an empty slot whose contents expire ttl after each Put.
func NewSecretSlot(ttl time.Duration) *SecretSlot {
	if ttl <= 0 {
		ttl = DefaultRevealTTL
	}
	return &SecretSlot{ttl: ttl, now: time.Now}
}

// OnExpire registers fn to run after the slot is wiped by its timer, so an
// open reveal view can close itself.
func (s *SecretSlot) OnExpire(fn func(owner string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = append(s.onExpire, fn)
}

// Put replaces whatever the slot holds with secret for owner. The caller keeps
// ownership of secret and should wipe it.
func (s *SecretSlot) Put(owner string, secret []byte) error {
	key, err := RandomBytes(chacha20poly1305.KeySize)
	if err != nil {
		return err
	}
	defer Wipe(key)
	nonce, err := RandomBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()

	copy(s.key[:], key)
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		s.clearLocked()
		return fmt.Errorf("seal secret: %w", err)
	}
	s.owner = owner
	s.nonce = nonce
	s.sealed = aead.Seal(nil, nonce, secret, []byte(owner))
	now := s.now()
	s.expires = now.Add(s.ttl)
	s.lastUsed = now
	s.timer = time.AfterFunc(s.ttl, s.expire)
	return nil
}

// Read returns a fresh copy of the secret held for owner. The caller should wipe it.
func (s *SecretSlot) Read(owner string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed == nil {
		return nil, ErrNoSecret
	}
	if !s.now().Before(s.expires) {
		s.clearLocked()
		return nil, ErrExpired
	}
	if s.owner != owner {
		return nil, ErrNoSecret
	}
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("open secret: %w", err)
	}
	plain, err := aead.Open(nil, s.nonce, s.sealed, []byte(owner))
	if err != nil {
		s.clearLocked()
		return nil, &DecryptError{Integrity: true, Cause: err}
	}
	s.lastUsed = s.now()
	return plain, nil
}

// Holds reports whether the slot currently has an unexpired secret for owner.
func (s *SecretSlot) Holds(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed != nil && s.owner == owner && s.now().Before(s.expires)
}

// Empty reports whether nothing is resident.
func (s *SecretSlot) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed == nil
}

// Status returns the current holder, if any.
func (s *SecretSlot) Status() (SlotStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed == nil {
		return SlotStatus{}, false
	}
	return SlotStatus{Owner: s.owner, Expires: s.expires, LastAccess: s.lastUsed}, true
}

// Clear wipes the slot immediately.
func (s *SecretSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *SecretSlot) expire() {
	s.mu.Lock()
	if s.sealed == nil || s.now().Before(s.expires) {
		s.mu.Unlock()
		return
	}
	owner := s.owner
	s.clearLocked()
	hooks := append([]func(string){}, s.onExpire...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(owner)
	}
}

func (s *SecretSlot) clearLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	Wipe(s.key[:])
	Wipe(s.sealed)
	Wipe(s.nonce)
	s.sealed = nil
	s.nonce = nil
	s.owner = ""
	s.expires = time.Time{}
	s.lastUsed = time.Time{}
}
