// ABOUTME: Provides BIP39 mnemonic phrase generation and validation for wallet seeds.
// ABOUTME: Phrases are 12 words (128-bit entropy) or 24 words (256-bit entropy).
package vault

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// Supported phrase lengths.
const (
	Words12 = 12
	Words24 = 24
)

// entropyBits maps a word count to the entropy it encodes.
func entropyBits(words int) (int, bool) {
	switch words {
	case Words12:
		return 128, true
	case Words24:
		return 256, true
	}
	return 0, false
}

// NewMnemonic generates a BIP39 phrase of wordCount words from RandomBytes.
func NewMnemonic(wordCount int) (string, error) {
	bits, ok := entropyBits(wordCount)
	if !ok {
		return "", &ValidationError{Field: "word count", Msg: "must be 12 or 24"}
	}
	entropy, err := RandomBytes(bits / 8)
	if err != nil {
		return "", err
	}
	defer Wipe(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("encode mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic lower-cases phrase and collapses whitespace to single spaces.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// ValidateMnemonic reports whether phrase is a 12 or 24 word BIP39 phrase with
// known words and a correct checksum. It never panics on malformed input.
func ValidateMnemonic(phrase string) bool {
	_, err := ParseMnemonic(phrase)
	return err == nil
}

// ParseMnemonic normalizes and validates phrase, returning the canonical form.
func ParseMnemonic(phrase string) (string, error) {
	norm := NormalizeMnemonic(phrase)
	if norm == "" {
		return "", &ValidationError{Field: "mnemonic", Msg: "phrase required"}
	}
	words := strings.Split(norm, " ")
	if _, ok := entropyBits(len(words)); !ok {
		return "", &ValidationError{Field: "mnemonic", Msg: fmt.Sprintf("expected 12 or 24 words, got %d", len(words))}
	}
	for i, w := range words {
		if _, ok := bip39.GetWordIndex(w); !ok {
			return "", &ValidationError{Field: "mnemonic", Msg: fmt.Sprintf("word %d is not in the word list", i+1)}
		}
	}
	if !bip39.IsMnemonicValid(norm) {
		return "", &ValidationError{Field: "mnemonic", Msg: "checksum mismatch"}
	}
	return norm, nil
}
