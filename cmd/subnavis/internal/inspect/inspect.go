package inspect

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/tyler-smith/go-bip39"

	"github.com/oktaviaorg/subnavis/store"
)

// phraseLengths are the BIP39 word counts an audit looks for.
var phraseLengths = []int{24, 21, 18, 15, 12}

// Inspector provides read-only access to a wallet store for introspection.
type Inspector struct {
	kv store.KV
}

// New wraps kv. The inspector never writes.
func New(kv store.KV) (*Inspector, error) {
	if kv == nil {
		return nil, errors.New("store required")
	}
	return &Inspector{kv: kv}, nil
}

// SummaryRow represents one stored key and the size of its value.
type SummaryRow struct {
	Key   string
	Bytes int
}

// Summary returns every key with its value size.
func (i *Inspector) Summary(ctx context.Context) ([]SummaryRow, error) {
	var out []SummaryRow
	err := i.kv.Scan(ctx, func(key string, value []byte) error {
		out = append(out, SummaryRow{Key: key, Bytes: len(value)})
		return nil
	})
	return out, err
}

// Finding marks a stored value that contains a checksum-valid recovery phrase.
// Only the location is reported, never the words.
type Finding struct {
	Key    string
	Offset int // index of the first word among the value's tokens
	Words  int
}

// Audit scans every stored value for plaintext recovery phrases.
func (i *Inspector) Audit(ctx context.Context) ([]Finding, error) {
	var out []Finding
	err := i.kv.Scan(ctx, func(key string, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, f := range scanPhrases(value) {
			f.Key = key
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// scanPhrases tokenizes value into letter runs and reports each checksum-valid
// window of known words. A match consumes its words so overlapping hits are
// not reported twice.
func scanPhrases(value []byte) []Finding {
	tokens := strings.FieldsFunc(strings.ToLower(string(value)), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	var out []Finding
	run := 0 // consecutive known words ending at i
	for i := 0; i < len(tokens); i++ {
		if _, ok := bip39.GetWordIndex(tokens[i]); !ok {
			run = 0
			continue
		}
		run++
		for _, n := range phraseLengths {
			if run < n {
				continue
			}
			start := i - n + 1
			if bip39.IsMnemonicValid(strings.Join(tokens[start:i+1], " ")) {
				out = append(out, Finding{Offset: start, Words: n})
				run = 0
				break
			}
		}
	}
	return out
}
