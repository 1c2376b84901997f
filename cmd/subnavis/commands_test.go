package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/oktaviaorg/subnavis/biometric"
	"github.com/oktaviaorg/subnavis/cmd/internal/appcli"
	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/vault"
	"github.com/oktaviaorg/subnavis/wallet"
)

const (
	devPhrase     = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"
	abandonPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	walletPass    = "Str0ng!Passw0rd"
)

// feedStdin replaces the prompt reader with input for the rest of the test.
// Secret prompts only read from it when stdin is not a terminal.
func feedStdin(t *testing.T, input string) {
	t.Helper()
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal")
	}
	prev := stdin
	stdin = bufio.NewReader(strings.NewReader(input))
	t.Cleanup(func() { stdin = prev })
}

// captureStdout collects what fn prints to stdout.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	prev := os.Stdout
	os.Stdout = w
	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.Bytes()
	}()
	runErr := fn()
	os.Stdout = prev
	_ = w.Close()
	out := <-done
	_ = r.Close()
	return string(out), runErr
}

// sqliteConfig points the CLI at a fresh store in a temp dir.
func sqliteConfig(t *testing.T) *Config {
	t.Helper()
	useTempHome(t)
	return &Config{
		Backend:  appcli.BackendSQLite,
		Store:    filepath.Join(t.TempDir(), "wallets.db"),
		Features: wallet.DefaultConfig().Features,
	}
}

// seed opens cfg's store once and runs fn against it.
func seed(t *testing.T, cfg *Config, fn func(context.Context, *wallet.Controller)) {
	t.Helper()
	app, err := appcli.NewApp(appcli.Options{Backend: cfg.Backend, StorePath: cfg.Store, Wallet: wallet.DefaultConfig()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	fn(context.Background(), app.Controller())
	if err := app.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

func walletNames(t *testing.T, cfg *Config) []string {
	t.Helper()
	var names []string
	seed(t, cfg, func(ctx context.Context, ctl *wallet.Controller) {
		recs, err := ctl.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, r := range recs {
			names = append(names, r.Name)
		}
	})
	return names
}

func mustAddress(t *testing.T, phrase string) string {
	t.Helper()
	addr, err := vault.DeriveAddress(phrase, vault.Bittensor)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return addr
}

func TestSignPayload(t *testing.T) {
	tests := []struct {
		name    string
		message string
		hex     string
		want    []byte
	}{
		{"plain", "hello", "", []byte("hello")},
		{"hex", "ignored", "deadbeef", []byte{0xde, 0xad, 0xbe, 0xef}},
		{"hex with prefix", "", "0x0102", []byte{0x01, 0x02}},
		{"empty", "", "", []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := signPayload(tt.message, tt.hex)
			if err != nil {
				t.Fatalf("signPayload: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("expected %x got %x", tt.want, got)
			}
		})
	}

	for _, bad := range []string{"zz", "0xabc", "0x0x01"} {
		_, err := signPayload("", bad)
		var ve *vault.ValidationError
		if !errors.As(err, &ve) || ve.Field != "message" {
			t.Errorf("%q: expected message validation error, got %v", bad, err)
		}
	}
}

func TestCmdSignRejectsBadHexBeforeOpeningStore(t *testing.T) {
	cfg := sqliteConfig(t)
	err := cmdSign(cfg, []string{"-hex", "not-hex"})
	if !errors.Is(err, vault.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, statErr := os.Stat(cfg.Store); !os.IsNotExist(statErr) {
		t.Fatalf("store must not be created for a rejected message: %v", statErr)
	}
}

func TestCmdSignWithPassword(t *testing.T) {
	cfg := sqliteConfig(t)
	seed(t, cfg, func(ctx context.Context, ctl *wallet.Controller) {
		if _, err := ctl.ImportWallet(ctx, "Dev", devPhrase, []byte(walletPass)); err != nil {
			t.Fatalf("import: %v", err)
		}
	})
	feedStdin(t, walletPass+"\n")

	out, err := captureStdout(t, func() error {
		return cmdSign(cfg, []string{"-hex", "0x68690a"})
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sigHex := strings.TrimPrefix(strings.TrimSpace(out), "0x")
	raw, err := hex.DecodeString(sigHex)
	if err != nil || len(raw) != 64 {
		t.Fatalf("expected a 64 byte hex signature, got %q", out)
	}
	var sig [64]byte
	copy(sig[:], raw)

	kp, err := vault.KeypairFromMnemonic(devPhrase)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	if !vault.Verify(kp.PublicKey(), []byte("hi\n"), sig) {
		t.Fatal("signature does not verify against the wallet key")
	}
}

func TestResolveIndex(t *testing.T) {
	ctx := context.Background()
	app, err := appcli.NewApp(appcli.Options{Backend: appcli.BackendMemory, Wallet: wallet.DefaultConfig()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer app.Close()
	ctl := app.Controller()

	if _, err := resolveIndex(ctx, ctl, -1); !errors.Is(err, store.ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet with no wallets, got %v", err)
	}

	for _, w := range []struct{ name, phrase string }{{"Dev", devPhrase}, {"Cold", abandonPhrase}} {
		if _, err := ctl.TrackAddress(ctx, w.name, mustAddress(t, w.phrase)); err != nil {
			t.Fatalf("track %s: %v", w.name, err)
		}
	}

	if i, err := resolveIndex(ctx, ctl, -1); err != nil || i != 1 {
		t.Fatalf("expected newest wallet 1 to be active, got %d %v", i, err)
	}
	if err := ctl.Select(ctx, 0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if i, err := resolveIndex(ctx, ctl, -1); err != nil || i != 0 {
		t.Fatalf("expected selected wallet 0, got %d %v", i, err)
	}
	if i, err := resolveIndex(ctx, ctl, 1); err != nil || i != 1 {
		t.Fatalf("explicit index must pass through, got %d %v", i, err)
	}
}

func TestCmdDeleteNameMismatchCancels(t *testing.T) {
	cfg := sqliteConfig(t)
	seed(t, cfg, func(ctx context.Context, ctl *wallet.Controller) {
		if _, err := ctl.TrackAddress(ctx, "Cold", mustAddress(t, abandonPhrase)); err != nil {
			t.Fatalf("track: %v", err)
		}
	})

	for _, input := range []string{"cold\n", "not-the-name\n", ""} {
		prev := stdin
		stdin = bufio.NewReader(strings.NewReader(input))
		err := cmdDelete(cfg, nil)
		stdin = prev
		if !errors.Is(err, vault.ErrCancelled) {
			t.Fatalf("input %q: expected ErrCancelled, got %v", input, err)
		}
	}
	if names := walletNames(t, cfg); len(names) != 1 || names[0] != "Cold" {
		t.Fatalf("wallet must survive a cancelled delete, got %v", names)
	}
}

func TestCmdDeleteConfirmed(t *testing.T) {
	cfg := sqliteConfig(t)
	seed(t, cfg, func(ctx context.Context, ctl *wallet.Controller) {
		for _, w := range []struct{ name, phrase string }{{"Dev", devPhrase}, {"Cold", abandonPhrase}} {
			if _, err := ctl.TrackAddress(ctx, w.name, mustAddress(t, w.phrase)); err != nil {
				t.Fatalf("track %s: %v", w.name, err)
			}
		}
	})

	prev := stdin
	stdin = bufio.NewReader(strings.NewReader("  Cold \n"))
	t.Cleanup(func() { stdin = prev })
	if _, err := captureStdout(t, func() error { return cmdDelete(cfg, nil) }); err != nil {
		t.Fatalf("delete active: %v", err)
	}
	if names := walletNames(t, cfg); len(names) != 1 || names[0] != "Dev" {
		t.Fatalf("expected only Dev to remain, got %v", names)
	}

	if _, err := captureStdout(t, func() error { return cmdDelete(cfg, []string{"-index", "0", "-yes"}) }); err != nil {
		t.Fatalf("delete with -yes: %v", err)
	}
	if names := walletNames(t, cfg); len(names) != 0 {
		t.Fatalf("expected no wallets, got %v", names)
	}
}

func writeEncryptedKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "subnavis", []byte(passphrase))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "gate_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

func TestAuthKeyPassphrase(t *testing.T) {
	ctx := context.Background()

	t.Run("no key", func(t *testing.T) {
		pass, err := authKeyPassphrase(ctx, "")
		if err != nil || pass != nil {
			t.Fatalf("expected nothing, got %q %v", pass, err)
		}
	})

	t.Run("plain key asks nothing", func(t *testing.T) {
		feedStdin(t, "")
		path := filepath.Join(t.TempDir(), "plain_ed25519")
		if err := biometric.GenerateKeyFile(path, "subnavis"); err != nil {
			t.Fatalf("generate: %v", err)
		}
		pass, err := authKeyPassphrase(ctx, path)
		if err != nil || pass != nil {
			t.Fatalf("expected no prompt for a plain key, got %q %v", pass, err)
		}
	})

	t.Run("encrypted key", func(t *testing.T) {
		path := writeEncryptedKey(t, "hunter22")
		feedStdin(t, "hunter22\n")
		pass, err := authKeyPassphrase(ctx, path)
		if err != nil {
			t.Fatalf("passphrase: %v", err)
		}
		if string(pass) != "hunter22" {
			t.Fatalf("expected the typed passphrase, got %q", pass)
		}
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		path := writeEncryptedKey(t, "hunter22")
		feedStdin(t, "hunter23\n")
		if _, err := authKeyPassphrase(ctx, path); !errors.Is(err, vault.ErrAuth) {
			t.Fatalf("expected ErrAuth, got %v", err)
		}
	})
}

func TestEncryptedAuthKeyGatesCommands(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.AuthKey = writeEncryptedKey(t, "hunter22")
	seed(t, cfg, func(ctx context.Context, ctl *wallet.Controller) {
		if _, err := ctl.TrackAddress(ctx, "Cold", mustAddress(t, abandonPhrase)); err != nil {
			t.Fatalf("track: %v", err)
		}
	})

	// passphrase, then the presence confirmation
	feedStdin(t, "hunter22\ny\n")
	out, err := captureStdout(t, func() error { return cmdBiometric(cfg, []string{"enable"}) })
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !strings.Contains(out, "enabled") {
		t.Errorf("unexpected output %q", out)
	}

	stdin = bufio.NewReader(strings.NewReader("hunter22\nn\n"))
	if err := cmdList(cfg, nil); !errors.Is(err, vault.ErrCancelled) {
		t.Fatalf("declined unlock must cancel, got %v", err)
	}
}
