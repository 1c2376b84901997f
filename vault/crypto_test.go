package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

const testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestEncryptDecrypt(t *testing.T) {
	ctx := context.Background()
	password := []byte("Str0ng!Passw0rd")

	blob, err := Encrypt(ctx, []byte(testPhrase), password)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := Decrypt(ctx, blob, password)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != testPhrase {
		t.Fatalf("expected %q got %q", testPhrase, plain)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	ctx := context.Background()
	blob, err := Encrypt(ctx, []byte(testPhrase), []byte("Str0ng!Passw0rd"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := Decrypt(ctx, blob, []byte("Str0ng!Passw0re"))
	if err == nil {
		t.Fatalf("expected failure, got plaintext %q", plain)
	}
	if !errors.Is(err, ErrDecryptFailed) || !errors.Is(err, ErrAuth) {
		t.Fatalf("expected decrypt/auth failure, got %v", err)
	}
	if errors.Is(err, ErrIntegrity) {
		t.Fatalf("wrong password must not be reported as structural corruption")
	}
	if err.Error() != "decrypt failed" {
		t.Fatalf("message leaks detail: %q", err.Error())
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	ctx := context.Background()
	password := []byte("Str0ng!Passw0rd")
	blob, err := Encrypt(ctx, []byte(testPhrase), password)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	offsets := map[string]int{
		"salt":       3,
		"nonce":      SaltLen + 5,
		"ciphertext": SaltLen + NonceLen + 7,
		"tag":        len(raw) - 1,
	}
	for name, off := range offsets {
		t.Run(name, func(t *testing.T) {
			mut := append([]byte(nil), raw...)
			mut[off] ^= 0x01
			if _, err := Decrypt(ctx, base64.StdEncoding.EncodeToString(mut), password); !errors.Is(err, ErrDecryptFailed) {
				t.Fatalf("expected decrypt failure after flipping a bit in %s, got %v", name, err)
			}
		})
	}
}

// Non-zero padding bits must not decode to the same bytes.
func TestDecryptRejectsAlteredEncoding(t *testing.T) {
	ctx := context.Background()
	password := []byte("Str0ng!Passw0rd")
	plain := []byte(testPhrase)
	if (SaltLen+NonceLen+len(plain)+tagLen)%3 != 2 {
		t.Fatalf("plaintext length %d does not leave a single padding character", len(plain))
	}
	blob, err := Encrypt(ctx, plain, password)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.HasSuffix(blob, "=") || strings.HasSuffix(blob, "==") {
		t.Fatalf("expected exactly one padding character, got tail %q", blob[len(blob)-4:])
	}

	for i := len(blob) - 4; i < len(blob); i++ {
		for bit := 0; bit < 8; bit++ {
			mut := []byte(blob)
			mut[i] ^= 1 << bit
			if string(mut) == blob {
				continue
			}
			got, err := Decrypt(ctx, string(mut), password)
			if err == nil {
				t.Fatalf("char %d bit %d (%q -> %q) still decrypted to %d bytes", i, bit, blob[i], mut[i], len(got))
			}
			if !IsDecryptFailure(err) {
				t.Fatalf("char %d bit %d: expected decrypt failure, got %v", i, bit, err)
			}
		}
	}
}

func TestDecryptMalformedBlob(t *testing.T) {
	ctx := context.Background()
	for name, blob := range map[string]string{
		"not base64": "%%%",
		"truncated":  base64.StdEncoding.EncodeToString(make([]byte, SaltLen+NonceLen)),
		"empty":      "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decrypt(ctx, blob, []byte("pw"))
			if !errors.Is(err, ErrIntegrity) {
				t.Fatalf("expected integrity failure, got %v", err)
			}
			if !errors.Is(err, ErrAuth) {
				t.Fatalf("integrity failure must look like an auth failure at the boundary")
			}
		})
	}
}

func TestEncryptFreshSaltAndNonce(t *testing.T) {
	ctx := context.Background()
	password := []byte("Str0ng!Passw0rd")
	a, err := Encrypt(ctx, []byte(testPhrase), password)
	if err != nil {
		t.Fatalf("encrypt a: %v", err)
	}
	b, err := Encrypt(ctx, []byte(testPhrase), password)
	if err != nil {
		t.Fatalf("encrypt b: %v", err)
	}
	if a == b {
		t.Fatalf("identical ciphertexts for identical inputs")
	}
	ra, _ := base64.StdEncoding.DecodeString(a)
	rb, _ := base64.StdEncoding.DecodeString(b)
	if string(ra[:SaltLen]) == string(rb[:SaltLen]) {
		t.Fatalf("salt reused")
	}
	if string(ra[SaltLen:SaltLen+NonceLen]) == string(rb[SaltLen:SaltLen+NonceLen]) {
		t.Fatalf("nonce reused")
	}
}

func TestEncryptHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Encrypt(ctx, []byte(testPhrase), []byte("pw")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	if _, err := Decrypt(ctx, "AAAA", []byte("pw")); err == nil {
		t.Fatalf("expected an error")
	}
}
