package wallet

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/oktaviaorg/subnavis/vault"
)

// PasswordPolicy is checked when a password first protects a wallet. Existing
// blobs are never re-checked.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy requires 12 characters drawn from all four classes.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      12,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Check returns a ValidationError naming the first unmet rule.
func (p PasswordPolicy) Check(password []byte) error {
	if !utf8.Valid(password) {
		return &vault.ValidationError{Field: "password", Msg: "must be valid UTF-8"}
	}
	if n := utf8.RuneCount(password); n < p.MinLength {
		return &vault.ValidationError{Field: "password", Msg: fmt.Sprintf("must be at least %d characters", p.MinLength)}
	}
	var upper, lower, digit, special bool
	for _, r := range string(password) {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r): // whitespace is not special
			special = true
		}
	}
	switch {
	case p.RequireUpper && !upper:
		return &vault.ValidationError{Field: "password", Msg: "must contain an uppercase letter"}
	case p.RequireLower && !lower:
		return &vault.ValidationError{Field: "password", Msg: "must contain a lowercase letter"}
	case p.RequireDigit && !digit:
		return &vault.ValidationError{Field: "password", Msg: "must contain a digit"}
	case p.RequireSpecial && !special:
		return &vault.ValidationError{Field: "password", Msg: "must contain a special character"}
	}
	return nil
}
