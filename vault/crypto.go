package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

const tagLen = 16

// Encrypt seals plaintext under a key derived from password. Every call draws a
// fresh salt and nonce, and the returned blob is base64(salt || nonce || ciphertext+tag)
// so Decrypt needs nothing but the password.
//
// Key derivation runs off the calling goroutine; a cancelled ctx returns early.
func Encrypt(ctx context.Context, plaintext, password []byte) (string, error) {
	return runCtx(ctx, func() (string, error) {
		return encrypt(plaintext, password)
	}, nil)
}

// Decrypt opens a blob produced by Encrypt. Any failure, whether a wrong password or a
// damaged blob, is a *DecryptError whose message does not say which.
func Decrypt(ctx context.Context, blob string, password []byte) ([]byte, error) {
	return runCtx(ctx, func() ([]byte, error) {
		return decrypt(blob, password)
	}, Wipe)
}

func encrypt(plaintext, password []byte) (string, error) {
	salt, err := RandomBytes(SaltLen)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	nonce, err := RandomBytes(NonceLen)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, SaltLen+NonceLen+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func decrypt(blob string, password []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.Strict().DecodeString(blob)
	if err != nil {
		return nil, &DecryptError{Integrity: true, Cause: fmt.Errorf("decode blob: %w", err)}
	}
	if len(raw) < SaltLen+NonceLen+tagLen {
		return nil, &DecryptError{Integrity: true, Cause: fmt.Errorf("blob too short: %d bytes", len(raw))}
	}
	salt := raw[:SaltLen]
	nonce := raw[SaltLen : SaltLen+NonceLen]
	ct := raw[SaltLen+NonceLen:]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, &DecryptError{Cause: err}
	}
	return plain, nil
}

func newGCM(password, salt []byte) (cipher.AEAD, error) {
	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer Wipe(key[:])

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceLen)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// runCtx runs fn on its own goroutine and waits for it or for ctx. When ctx wins,
// the late result is handed to discard once it arrives.
func runCtx[T any](ctx context.Context, fn func() (T, error), discard func(T)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v: v, err: err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		if discard != nil {
			go func() {
				r := <-done
				discard(r.v)
			}()
		}
		return zero, ctx.Err()
	}
}

// IsDecryptFailure reports whether err came from a failed Decrypt.
func IsDecryptFailure(err error) bool {
	var de *DecryptError
	return errors.As(err, &de)
}
