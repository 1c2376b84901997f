package vault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// Network describes how account addresses are encoded on a chain.
type Network struct {
	Name          string
	SS58Prefix    uint16
	AddressPrefix string // leading character every well-formed address has
	MinAddressLen int
}

// Bittensor is the TAO network: generic Substrate SS58 format 42.
var Bittensor = Network{
	Name:          "bittensor",
	SS58Prefix:    42,
	AddressPrefix: "5",
	MinAddressLen: 47,
}

const ss58ChecksumLen = 2

var ss58Pre = []byte("SS58PRE")

// EncodeAddress returns the SS58 address of a 32-byte public key.
func (n Network) EncodeAddress(pub [32]byte) string {
	payload := append(ss58PrefixBytes(n.SS58Prefix), pub[:]...)
	sum := ss58Checksum(payload)
	return base58.Encode(append(payload, sum[:ss58ChecksumLen]...))
}

// DecodeAddress parses an SS58 address for this network and returns its public key.
func (n Network) DecodeAddress(addr string) ([32]byte, error) {
	var pub [32]byte
	raw := base58.Decode(addr)
	if len(raw) == 0 {
		return pub, errors.New("address is not base58")
	}
	prefix, plen, err := parseSS58Prefix(raw)
	if err != nil {
		return pub, err
	}
	if prefix != n.SS58Prefix {
		return pub, fmt.Errorf("address is for network format %d, want %d", prefix, n.SS58Prefix)
	}
	if len(raw) != plen+32+ss58ChecksumLen {
		return pub, fmt.Errorf("invalid address length: %d bytes", len(raw))
	}
	body := raw[:plen+32]
	sum := ss58Checksum(body)
	if raw[plen+32] != sum[0] || raw[plen+33] != sum[1] {
		return pub, errors.New("invalid address checksum")
	}
	copy(pub[:], raw[plen:plen+32])
	return pub, nil
}

// ValidateAddress checks prefix and minimum length, then the SS58 checksum.
func (n Network) ValidateAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return &ValidationError{Field: "address", Msg: "address required"}
	}
	if !strings.HasPrefix(addr, n.AddressPrefix) || len(addr) < n.MinAddressLen {
		return &ValidationError{Field: "address", Msg: fmt.Sprintf("must start with %q and be at least %d characters", n.AddressPrefix, n.MinAddressLen)}
	}
	if _, err := n.DecodeAddress(addr); err != nil {
		return &ValidationError{Field: "address", Msg: err.Error()}
	}
	return nil
}

// ValidAddress is ValidateAddress as a predicate.
func (n Network) ValidAddress(addr string) bool {
	return n.ValidateAddress(addr) == nil
}

func ss58Checksum(payload []byte) [64]byte {
	buf := make([]byte, 0, len(ss58Pre)+len(payload))
	buf = append(buf, ss58Pre...)
	buf = append(buf, payload...)
	return blake2b.Sum512(buf)
}

// ss58PrefixBytes uses the one-byte form below 64 and the two-byte form up to 16383.
func ss58PrefixBytes(ident uint16) []byte {
	if ident < 64 {
		return []byte{byte(ident)}
	}
	first := byte((ident&0x00fc)>>2) | 0x40
	second := byte(ident>>8) | byte((ident&0x03)<<6)
	return []byte{first, second}
}

func parseSS58Prefix(raw []byte) (uint16, int, error) {
	b0 := raw[0]
	switch {
	case b0 < 64:
		return uint16(b0), 1, nil
	case b0 < 128:
		if len(raw) < 2 {
			return 0, 0, errors.New("truncated address prefix")
		}
		b1 := raw[1]
		lower := uint16(b0<<2) | uint16(b1>>6)
		upper := uint16(b1 & 0x3f)
		return lower | upper<<8, 2, nil
	}
	return 0, 0, fmt.Errorf("reserved address prefix byte %d", b0)
}
