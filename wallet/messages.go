package wallet

import (
	"errors"

	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/vault"
)

// UserMessage turns an operation error into text fit for the user. Decrypt and
// integrity failures read the same as a wrong password.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *vault.ValidationError
	var ae *vault.AuthError
	switch {
	case errors.Is(err, vault.ErrReadOnly):
		return "This wallet is watch-only. It has no recovery phrase or signing key on this device."
	case errors.Is(err, vault.ErrCancelled):
		return "Cancelled."
	case errors.As(err, &ae) && ae.Reason == "too many attempts":
		return "Too many attempts. Wait a moment and try again."
	case errors.Is(err, vault.ErrAuth):
		return "Incorrect password or verification failed."
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, vault.ErrLocked):
		return "Unlock the wallet first."
	case errors.Is(err, vault.ErrExpired), errors.Is(err, vault.ErrNoSecret):
		return "The recovery phrase was hidden. Authenticate again to view it."
	case errors.Is(err, vault.ErrPlatformUnavailable):
		return "This device does not support that feature."
	case errors.Is(err, store.ErrNoWallet):
		return "No wallet at that position."
	}
	return "Something went wrong."
}
