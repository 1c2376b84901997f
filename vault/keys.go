package vault

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey stretches password with salt into a 256-bit AEAD key using
// PBKDF2-HMAC-SHA256. The same inputs always yield the same key.
func DeriveKey(password, salt []byte) ([KeyLen]byte, error) {
	var out [KeyLen]byte
	if len(salt) < SaltLen {
		return out, fmt.Errorf("salt must be at least %d bytes, got %d", SaltLen, len(salt))
	}
	mk := pbkdf2.Key(password, salt, PBKDF2Iterations, KeyLen, sha256.New)
	copy(out[:], mk)
	Wipe(mk)
	return out, nil
}
