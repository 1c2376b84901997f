package vault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Reader is the CSPRNG every secret in this package is drawn from.
var Reader io.Reader = rand.Reader

// selfTestMin is the shortest output checked for the all-zero failure mode.
const selfTestMin = 16

var errAllZero = errors.New("generator returned all-zero output")

// RandomBytes returns n bytes from Reader. It never falls back to a weaker source.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("random length must be positive, got %d", n)
	}
	if Reader == nil {
		return nil, &PlatformError{Capability: "csprng", Err: errors.New("no generator configured")}
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, &PlatformError{Capability: "csprng", Err: err}
	}
	if n >= selfTestMin && allZero(b) {
		return nil, &PlatformError{Capability: "csprng", Err: errAllZero}
	}
	return b, nil
}

// RandomIndex returns a uniform integer in [0, n).
func RandomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("index range must be positive, got %d", n)
	}
	if Reader == nil {
		return 0, &PlatformError{Capability: "csprng", Err: errors.New("no generator configured")}
	}
	v, err := rand.Int(Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, &PlatformError{Capability: "csprng", Err: err}
	}
	return int(v.Int64()), nil
}

func allZero(b []byte) bool {
	var acc byte
	for _, c := range b {
		acc |= c
	}
	return acc == 0
}

// Wipe zeroes b. Best effort: the runtime may hold copies.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
