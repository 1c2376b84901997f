package vault

import (
	"errors"
	"io"
	"testing"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func swapReader(t *testing.T, r io.Reader) {
	t.Helper()
	prev := Reader
	Reader = r
	t.Cleanup(func() { Reader = prev })
}

func TestRandomBytes(t *testing.T) {
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if len(b) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(b))
	}
}

func TestRandomBytesRejectsAllZero(t *testing.T) {
	swapReader(t, zeroReader{})
	if _, err := RandomBytes(32); !errors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("expected platform failure, got %v", err)
	}
}

func TestRandomBytesFailsLoudly(t *testing.T) {
	swapReader(t, brokenReader{})
	if _, err := RandomBytes(16); !errors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("expected platform failure, got %v", err)
	}
	if _, err := NewMnemonic(Words12); !errors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("mnemonic generation must not fall back, got %v", err)
	}
}

func TestRandomIndexRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		n, err := RandomIndex(12)
		if err != nil {
			t.Fatalf("index: %v", err)
		}
		if n < 0 || n >= 12 {
			t.Fatalf("index %d out of range", n)
		}
	}
	if _, err := RandomIndex(0); err == nil {
		t.Fatalf("expected error for empty range")
	}
}
