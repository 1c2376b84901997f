// ABOUTME: WalletRecord, the persisted shape of one wallet.
// ABOUTME: The encrypted mnemonic blob is the only secret-bearing field ever written.
package store

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/oktaviaorg/subnavis/vault"
)

// WalletRecord is one entry in the wallet collection.
type WalletRecord struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Address           string           `json:"address"`
	EncryptedMnemonic string           `json:"encryptedMnemonic,omitempty"`
	WatchOnly         bool             `json:"watchOnly"`
	Security          *vault.KDFParams `json:"security,omitempty"`
	Created           int64            `json:"created"` // unix millis
}

// CreatedAt returns Created as a time.
func (r WalletRecord) CreatedAt() time.Time {
	return time.UnixMilli(r.Created)
}

// Validate checks the record's structural invariants against network n.
func (r WalletRecord) Validate(n vault.Network) error {
	if strings.TrimSpace(r.Name) == "" {
		return &vault.ValidationError{Field: "name", Msg: "must not be empty"}
	}
	if err := n.ValidateAddress(r.Address); err != nil {
		return err
	}
	if r.WatchOnly && r.EncryptedMnemonic != "" {
		return &vault.ValidationError{Field: "record", Msg: "watch-only wallet carries key material"}
	}
	if !r.WatchOnly && r.EncryptedMnemonic == "" {
		return &vault.ValidationError{Field: "record", Msg: "wallet has no encrypted mnemonic"}
	}
	if r.WatchOnly && r.Security != nil {
		return &vault.ValidationError{Field: "record", Msg: "watch-only wallet carries security metadata"}
	}
	return nil
}

func newRecordID() string {
	return ulid.Make().String()
}
