package vault

// KDFParams describes how a password is stretched into a vault key. It is recorded
// as metadata on every wallet; decryption never reads it back.
type KDFParams struct {
	Algorithm  string `json:"algorithm"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	SaltLen    int    `json:"saltLength"`
	KeyLen     int    `json:"keyLength"`
	Version    int    `json:"version"`
}

// Blob layout and key derivation constants. Changing any of them breaks every
// existing ciphertext.
const (
	BlobVersion      = 1
	SaltLen          = 16
	NonceLen         = 12
	KeyLen           = 32
	PBKDF2Iterations = 600_000
)

// DefaultKDFParams returns the parameters Encrypt uses.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algorithm:  "AES-256-GCM",
		KDF:        "PBKDF2-SHA256",
		Iterations: PBKDF2Iterations,
		SaltLen:    SaltLen,
		KeyLen:     KeyLen,
		Version:    BlobVersion,
	}
}
