package wallet

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oktaviaorg/subnavis/biometric"
	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/vault"
)

const (
	strongPassword = "Str0ng!Passw0rd"
	devPhrase      = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"
	abandonPhrase  = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	bob            = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JanitorEvery = 0
	return cfg
}

func newTestController(t *testing.T, cfg Config, kv store.KV, auth biometric.Authenticator) *Controller {
	t.Helper()
	if kv == nil {
		kv = store.NewMemoryKV()
	}
	c, err := New(cfg, Deps{KV: kv, Authenticator: auth})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// scriptedPrompter remembers the shown words and answers the challenge,
// optionally getting it wrong the first few times.
type scriptedPrompter struct {
	words      []string
	wrong      int
	asked      int
	cancelShow bool
	cancelAsk  bool
}

func (p *scriptedPrompter) ShowMnemonic(_ context.Context, words []string) error {
	if p.cancelShow {
		return vault.ErrCancelled
	}
	p.words = append([]string(nil), words...)
	return nil
}

func (p *scriptedPrompter) AskWords(_ context.Context, positions []int) ([]string, error) {
	p.asked++
	if p.cancelAsk {
		return nil, vault.ErrCancelled
	}
	out := make([]string, len(positions))
	for i, pos := range positions {
		out[i] = " " + strings.ToUpper(p.words[pos-1]) + " "
	}
	if p.asked <= p.wrong {
		out[len(out)-1] = "zzzz"
	}
	return out, nil
}

func (p *scriptedPrompter) phrase() string {
	return strings.Join(p.words, " ")
}
