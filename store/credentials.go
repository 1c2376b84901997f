package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oktaviaorg/subnavis/biometric"
)

// CredentialKey is the KV key holding the biometric credential reference.
const CredentialKey = "tao_biometric"

// CredentialStore keeps the biometric credential in the same KV as the wallets.
type CredentialStore struct {
	kv KV
}

func NewCredentialStore(kv KV) *CredentialStore {
	return &CredentialStore{kv: kv}
}

func (c *CredentialStore) LoadCredential(ctx context.Context) (biometric.Credential, error) {
	raw, err := c.kv.Get(ctx, CredentialKey)
	if errors.Is(err, ErrNotFound) {
		return biometric.Credential{}, biometric.ErrNoCredential
	}
	if err != nil {
		return biometric.Credential{}, fmt.Errorf("load credential: %w", err)
	}
	var cred biometric.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return biometric.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

func (c *CredentialStore) SaveCredential(ctx context.Context, cred biometric.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return c.kv.Put(ctx, CredentialKey, raw)
}

func (c *CredentialStore) DeleteCredential(ctx context.Context) error {
	return c.kv.Delete(ctx, CredentialKey)
}
