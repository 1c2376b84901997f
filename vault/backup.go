// ABOUTME: Seed backup verification: the user re-types random words of a new mnemonic.
// ABOUTME: Only a verified phrase may be encrypted and persisted as a wallet.
package vault

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// BackupState is the verifier's position in the backup ceremony.
type BackupState int

const (
	BackupGenerated BackupState = iota
	BackupDisplayed
	BackupAwaitingVerification
	BackupVerified
	BackupAbandoned
)

func (s BackupState) String() string {
	switch s {
	case BackupGenerated:
		return "generated"
	case BackupDisplayed:
		return "displayed"
	case BackupAwaitingVerification:
		return "awaiting_verification"
	case BackupVerified:
		return "verified"
	case BackupAbandoned:
		return "abandoned"
	}
	return fmt.Sprintf("BackupState(%d)", int(s))
}

// DefaultChallengeSize is how many word positions the user must re-type.
const DefaultChallengeSize = 3

// ErrBackupMismatch is returned when a submitted word is wrong.
var ErrBackupMismatch = &ValidationError{Field: "backup", Msg: "one or more words do not match"}

var errWrongState = errors.New("backup verifier in wrong state")

// BackupVerifier drives Generated -> Displayed -> AwaitingVerification -> Verified,
// with Abandoned reachable from any state before Verified.
type BackupVerifier struct {
	mu        sync.Mutex
	state     BackupState
	words     [][]byte
	positions []int // 1-based, ascending
	size      int
	attempts  int
	pick      func(n, k int) ([]int, error)
}

// NewBackupVerifier takes ownership of a freshly generated mnemonic.
func NewBackupVerifier(mnemonic string, challengeSize int) (*BackupVerifier, error) {
	norm, err := ParseMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	if challengeSize <= 0 {
		challengeSize = DefaultChallengeSize
	}
	fields := bytes.Fields([]byte(norm))
	if challengeSize > len(fields) {
		challengeSize = len(fields)
	}
	return &BackupVerifier{
		state: BackupGenerated,
		words: fields,
		size:  challengeSize,
		pick:  pickPositions,
	}, nil
}

// State returns the current state.
func (v *BackupVerifier) State() BackupState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Attempts returns how many rejected submissions were made.
func (v *BackupVerifier) Attempts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.attempts
}

// Display moves Generated -> Displayed and returns the words. It succeeds once.
func (v *BackupVerifier) Display() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != BackupGenerated {
		return nil, fmt.Errorf("display: %w (%s)", errWrongState, v.state)
	}
	out := make([]string, len(v.words))
	for i, w := range v.words {
		out[i] = string(w)
	}
	v.state = BackupDisplayed
	return out, nil
}

// BeginVerification moves Displayed -> AwaitingVerification and returns the
// 1-based positions the user must answer. The positions are fixed for the
// lifetime of the verifier.
func (v *BackupVerifier) BeginVerification() ([]int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == BackupAwaitingVerification {
		return append([]int(nil), v.positions...), nil
	}
	if v.state != BackupDisplayed {
		return nil, fmt.Errorf("begin verification: %w (%s)", errWrongState, v.state)
	}
	pos, err := v.pick(len(v.words), v.size)
	if err != nil {
		return nil, err
	}
	v.positions = pos
	v.state = BackupAwaitingVerification
	return append([]int(nil), pos...), nil
}

// Positions returns the challenge positions, or nil before BeginVerification.
func (v *BackupVerifier) Positions() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.positions...)
}

// Submit checks answers, given in the order of the challenge positions. Words are
// compared trimmed and case-insensitively. Every answer must match; otherwise the
// verifier stays in AwaitingVerification and ErrBackupMismatch is returned.
func (v *BackupVerifier) Submit(answers []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != BackupAwaitingVerification {
		return fmt.Errorf("submit: %w (%s)", errWrongState, v.state)
	}
	if len(answers) != len(v.positions) {
		v.attempts++
		return &ValidationError{Field: "backup", Msg: fmt.Sprintf("expected %d words, got %d", len(v.positions), len(answers))}
	}
	match := 1
	for i, p := range v.positions {
		got := []byte(strings.ToLower(strings.TrimSpace(answers[i])))
		want := v.words[p-1]
		// no early exit: every position is compared
		match &= subtle.ConstantTimeCompare(got, want)
	}
	if match != 1 {
		v.attempts++
		return ErrBackupMismatch
	}
	v.state = BackupVerified
	return nil
}

// Mnemonic returns the phrase once verified.
func (v *BackupVerifier) Mnemonic() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != BackupVerified {
		return "", fmt.Errorf("mnemonic: %w (%s)", errWrongState, v.state)
	}
	return string(bytes.Join(v.words, []byte(" "))), nil
}

// Abandon cancels the ceremony and wipes the held words. It is a no-op once
// verified or already abandoned.
func (v *BackupVerifier) Abandon() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == BackupVerified || v.state == BackupAbandoned {
		return
	}
	v.wipeLocked()
	v.state = BackupAbandoned
}

// Release wipes the held words after the verified phrase has been persisted.
func (v *BackupVerifier) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wipeLocked()
}

func (v *BackupVerifier) wipeLocked() {
	for _, w := range v.words {
		Wipe(w)
	}
	v.words = nil
}

// pickPositions draws k distinct 1-based positions from [1, n] uniformly.
func pickPositions(n, k int) ([]int, error) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i + 1
	}
	// partial Fisher-Yates
	for i := 0; i < k; i++ {
		j, err := RandomIndex(n - i)
		if err != nil {
			return nil, err
		}
		idx[i], idx[i+j] = idx[i+j], idx[i]
	}
	out := idx[:k]
	sort.Ints(out)
	return out, nil
}
