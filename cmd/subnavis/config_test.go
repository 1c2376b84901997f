package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oktaviaorg/subnavis/vault"
)

func useTempHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	return tmpDir
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Fatal("ConfigPath returned empty string")
	}
	if !filepath.IsAbs(path) {
		t.Errorf("ConfigPath returned relative path: %s", path)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	useTempHome(t)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}
	info, err := os.Stat(ConfigDir())
	if err != nil {
		t.Fatalf("config directory not created: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("expected 0700 config dir, got %v", info.Mode().Perm())
	}
}

func TestEnsureConfigDir_FileInPlace(t *testing.T) {
	home := useTempHome(t)
	if err := os.WriteFile(filepath.Join(home, ".subnavis"), []byte("oops"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(home, ".subnavis.backup.*"))
	if len(matches) != 1 {
		t.Fatalf("expected the file to be backed up, found %v", matches)
	}
}

func TestLoadConfig_NotExists(t *testing.T) {
	useTempHome(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed when file doesn't exist: %v", err)
	}
	if cfg.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Backend)
	}
	if cfg.Store != filepath.Join(ConfigDir(), "wallets.db") {
		t.Errorf("unexpected default store %q", cfg.Store)
	}
	if !cfg.Features.BiometricGating || !cfg.Features.BackupVerification {
		t.Errorf("expected all features on by default, got %+v", cfg.Features)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	home := useTempHome(t)

	t.Setenv("SUBNAVIS_BACKEND", "bolt")
	t.Setenv("SUBNAVIS_STORE", "~/custom.bolt")
	t.Setenv("SUBNAVIS_AUTH_KEY", "/keys/gate")
	t.Setenv("SUBNAVIS_WORDS", "12")
	t.Setenv("SUBNAVIS_REVEAL_TTL", "90s")
	t.Setenv("SUBNAVIS_LOG_LEVEL", "debug")
	t.Setenv("SUBNAVIS_BIOMETRIC", "false")
	t.Setenv("SUBNAVIS_BACKUP_VERIFY", "false")
	// unprefixed variables must be ignored
	t.Setenv("STORE", "/wrong")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Backend != "bolt" {
		t.Errorf("backend: got %q", cfg.Backend)
	}
	if cfg.Store != filepath.Join(home, "custom.bolt") {
		t.Errorf("store: got %q", cfg.Store)
	}
	if cfg.AuthKey != "/keys/gate" {
		t.Errorf("auth key: got %q", cfg.AuthKey)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.Features.BiometricGating || cfg.Features.BackupVerification {
		t.Errorf("expected features off, got %+v", cfg.Features)
	}

	wc, err := cfg.WalletConfig()
	if err != nil {
		t.Fatalf("WalletConfig failed: %v", err)
	}
	if wc.WordCount != vault.Words12 {
		t.Errorf("word count: got %d", wc.WordCount)
	}
	if wc.RevealTTL != 90*time.Second {
		t.Errorf("reveal ttl: got %v", wc.RevealTTL)
	}
}

func TestLoadConfig_BadEnv(t *testing.T) {
	useTempHome(t)
	t.Setenv("SUBNAVIS_WORDS", "many")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for non-numeric SUBNAVIS_WORDS")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	useTempHome(t)

	cfg := defaultConfig()
	cfg.Backend = "bolt"
	cfg.Store = "/data/wallets.bolt"
	cfg.Words = 12
	cfg.RevealTTL = "2m"
	cfg.Features.BackupVerification = false
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Fatal("ConfigExists returned false after save")
	}
	info, err := os.Stat(ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 config file, got %v", info.Mode().Perm())
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Backend != "bolt" || loaded.Store != "/data/wallets.bolt" {
		t.Errorf("unexpected storage settings: %+v", loaded)
	}
	if loaded.Words != 12 || loaded.RevealTTL != "2m" {
		t.Errorf("unexpected wallet settings: %+v", loaded)
	}
	if loaded.Features.BackupVerification {
		t.Error("backup verification should stay off")
	}
}

func TestLoadConfig_Corrupted(t *testing.T) {
	useTempHome(t)
	if err := EnsureConfigDir(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "corrupted") {
		t.Fatalf("expected corruption error, got %v", err)
	}
	if ConfigExists() {
		t.Error("corrupted config should have been moved aside")
	}
}

func TestWalletConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"words", Config{Words: 18}},
		{"ttl format", Config{RevealTTL: "soon"}},
		{"ttl negative", Config{RevealTTL: "-1m"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.cfg.WalletConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDescribeUsesUserMessages(t *testing.T) {
	if got := describe(&vault.AuthError{Reason: "password"}); got != "Incorrect password or verification failed." {
		t.Errorf("auth error: got %q", got)
	}
	if got := describe(os.ErrPermission); got != os.ErrPermission.Error() {
		t.Errorf("plain error: got %q", got)
	}
}
