// ABOUTME: Shared CLI runtime: opens the configured KV backend and builds the wallet controller.
// ABOUTME: Keeps storage and authenticator wiring out of individual commands.
package appcli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oktaviaorg/subnavis/biometric"
	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/wallet"
)

// Backend names accepted by OpenKV.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Options wires shared CLI runtime bits.
type Options struct {
	Backend           string
	StorePath         string
	AuthKeyPath       string // OpenSSH key acting as the device authenticator; empty means none
	AuthKeyPassphrase []byte
	Confirm           biometric.ConfirmFunc
	Wallet            wallet.Config
	Logger            *slog.Logger
}

// App glues the CLI to the wallet controller.
type App struct {
	opts Options
	kv   store.KV
	ctl  *wallet.Controller
}

// NewApp opens storage and builds the controller using supplied opts.
func NewApp(opts Options) (*App, error) {
	normalized, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	kv, err := OpenKV(normalized.Backend, normalized.StorePath)
	if err != nil {
		return nil, err
	}

	var auth biometric.Authenticator
	if normalized.AuthKeyPath != "" {
		auth = &biometric.KeyFileAuthenticator{
			Path:       normalized.AuthKeyPath,
			Passphrase: normalized.AuthKeyPassphrase,
			Confirm:    normalized.Confirm,
		}
	}
	ctl, err := wallet.New(normalized.Wallet, wallet.Deps{
		KV:            kv,
		Authenticator: auth,
		Logger:        normalized.Logger,
	})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return &App{opts: normalized, kv: kv, ctl: ctl}, nil
}

// Controller returns the wallet controller.
func (a *App) Controller() *wallet.Controller { return a.ctl }

// KV returns the underlying storage.
func (a *App) KV() store.KV { return a.kv }

// Close releases resources.
func (a *App) Close() error {
	var firstErr error
	if a.ctl != nil {
		if err := a.ctl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenKV opens the named backend at path.
func OpenKV(backend, path string) (store.KV, error) {
	switch backend {
	case BackendSQLite, "":
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		return store.OpenSQLite(path)
	case BackendBolt:
		return store.OpenBolt(path)
	case BackendMemory:
		return store.NewMemoryKV(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.Backend == "" {
		opts.Backend = BackendSQLite
	}
	if opts.StorePath == "" && opts.Backend != BackendMemory {
		return opts, errors.New("store path required")
	}
	if opts.Wallet.Network.AddressPrefix == "" {
		opts.Wallet = wallet.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return opts, nil
}
