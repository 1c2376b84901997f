// ABOUTME: Typed errors for key custody operations.
// ABOUTME: Enables programmatic error handling with errors.Is() and errors.As().
package vault

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic handling.
var (
	ErrValidation          = errors.New("validation failed")
	ErrAuth                = errors.New("authentication failed")
	ErrPlatformUnavailable = errors.New("platform capability unavailable")
	ErrIntegrity           = errors.New("integrity check failed")
	ErrDecryptFailed       = errors.New("decrypt failed")
	ErrReadOnly            = errors.New("wallet is read-only")
	ErrCancelled           = errors.New("cancelled by user")
	ErrExpired             = errors.New("secret expired")
	ErrLocked              = errors.New("app is locked")
	ErrNoSecret            = errors.New("no revealed secret")
)

// ValidationError reports malformed user input. Msg is safe to show to the user
// and never contains secret material.
type ValidationError struct {
	Field string // "mnemonic", "address", "password", "name", ...
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AuthError reports a failed password or biometric check. The caller may retry.
type AuthError struct {
	Reason string // "password", "biometric", "cancelled", "too many attempts"
	Cause  error
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return ErrAuth.Error()
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// PlatformError reports a missing platform capability (CSPRNG, authenticator).
// It is fatal for the requested operation only.
type PlatformError struct {
	Capability string // "csprng", "authenticator"
	Err        error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Capability, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

func (e *PlatformError) Is(target error) bool {
	return target == ErrPlatformUnavailable
}

// DecryptError is returned by Decrypt. Error() is deliberately generic so callers
// cannot tell a wrong password from a damaged blob. Integrity is set only when the
// blob is structurally broken (bad encoding, truncated), which a wrong password
// can never cause.
type DecryptError struct {
	Integrity bool
	Cause     error
}

func (e *DecryptError) Error() string {
	return ErrDecryptFailed.Error()
}

func (e *DecryptError) Unwrap() error {
	return e.Cause
}

func (e *DecryptError) Is(target error) bool {
	switch target {
	case ErrDecryptFailed, ErrAuth:
		return true
	case ErrIntegrity:
		return e.Integrity
	}
	return false
}

// Diagnostic returns a description for internal logs only.
func (e *DecryptError) Diagnostic() string {
	if e.Integrity {
		return fmt.Sprintf("blob corrupted: %v", e.Cause)
	}
	return "authentication tag mismatch (wrong password or tampered ciphertext)"
}
