// ABOUTME: config.go provides configuration file management for the subnavis CLI.
// ABOUTME: Supports loading, saving, and auto-initialization with environment variable overrides.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/oktaviaorg/subnavis/vault"
	"github.com/oktaviaorg/subnavis/wallet"
)

// Config represents the subnavis CLI configuration.
type Config struct {
	Backend   string          `json:"backend"`
	Store     string          `json:"store"`
	AuthKey   string          `json:"auth_key,omitempty"`
	Words     int             `json:"words,omitempty"`
	RevealTTL string          `json:"reveal_ttl,omitempty"`
	LogLevel  string          `json:"log_level,omitempty"`
	Features  wallet.Features `json:"features"`
}

// envOverrides are read from SUBNAVIS_* variables and win over the file.
// Names come from split_words so unprefixed variables are never consulted.
type envOverrides struct {
	Backend      string
	Store        string
	AuthKey      string `split_words:"true"`
	Words        int
	RevealTTL    time.Duration `split_words:"true"`
	LogLevel     string        `split_words:"true"`
	Biometric    *bool
	BackupVerify *bool `split_words:"true"`
}

// ConfigPath is a function that returns the path to the subnavis config file.
// It can be overridden in tests.
var ConfigPath = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".subnavis", "config.json")
	}
	return filepath.Join(home, ".subnavis", "config.json")
}

// ConfigDir returns the directory containing the config file.
func ConfigDir() string {
	return filepath.Dir(ConfigPath())
}

// EnsureConfigDir creates the config directory if it doesn't exist.
// A plain file in its place is backed up first.
func EnsureConfigDir() error {
	dir := ConfigDir()

	info, err := os.Stat(dir)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		backup := dir + ".backup." + time.Now().Format("20060102-150405")
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("config path %s is a file, failed to backup: %w", dir, err)
		}
		fmt.Fprintf(os.Stderr, "Warning: %s was a file, backed up to %s\n", dir, backup)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("check config dir: %w", err)
	}

	return os.MkdirAll(dir, 0o700)
}

// LoadConfig loads config from file and applies environment variable overrides.
// Returns default config if file doesn't exist.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	configPath := ConfigPath()

	info, statErr := os.Stat(configPath)
	if statErr == nil && info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory, not a file", configPath)
	}

	// #nosec G304 -- configPath is derived from user's home directory, not user input
	data, err := os.ReadFile(configPath)
	if err == nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			backup := configPath + ".corrupt." + time.Now().Format("20060102-150405")
			if renameErr := os.Rename(configPath, backup); renameErr == nil {
				fmt.Fprintf(os.Stderr, "Warning: corrupted config backed up to %s\n", backup)
			}
			return nil, fmt.Errorf("config file corrupted: %w\nRun 'subnavis init' to create a new config", jsonErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.Backend == "" {
		cfg.Backend = "sqlite"
	}
	if cfg.Store == "" {
		cfg.Store = defaultStorePath(cfg.Backend)
	}

	return cfg, nil
}

// defaultConfig returns a config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Backend:  "sqlite",
		Store:    defaultStorePath("sqlite"),
		Features: wallet.DefaultConfig().Features,
	}
}

func defaultStorePath(backend string) string {
	if backend == "bolt" {
		return filepath.Join(ConfigDir(), "wallets.bolt")
	}
	return filepath.Join(ConfigDir(), "wallets.db")
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("subnavis", &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if env.Backend != "" {
		cfg.Backend = env.Backend
	}
	if env.Store != "" {
		cfg.Store = expandPath(env.Store)
	}
	if env.AuthKey != "" {
		cfg.AuthKey = expandPath(env.AuthKey)
	}
	if env.Words != 0 {
		cfg.Words = env.Words
	}
	if env.RevealTTL != 0 {
		cfg.RevealTTL = env.RevealTTL.String()
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.Biometric != nil {
		cfg.Features.BiometricGating = *env.Biometric
	}
	if env.BackupVerify != nil {
		cfg.Features.BackupVerification = *env.BackupVerify
	}
	return nil
}

// WalletConfig turns the file settings into controller settings.
func (c *Config) WalletConfig() (wallet.Config, error) {
	wc := wallet.DefaultConfig()
	wc.Features = c.Features
	if c.Words != 0 {
		if c.Words != vault.Words12 && c.Words != vault.Words24 {
			return wc, fmt.Errorf("words must be %d or %d, got %d", vault.Words12, vault.Words24, c.Words)
		}
		wc.WordCount = c.Words
	}
	if c.RevealTTL != "" {
		d, err := time.ParseDuration(c.RevealTTL)
		if err != nil {
			return wc, fmt.Errorf("reveal_ttl: %w", err)
		}
		if d <= 0 {
			return wc, fmt.Errorf("reveal_ttl must be positive, got %s", d)
		}
		wc.RevealTTL = d
	}
	return wc, nil
}

// SaveConfig writes config to file.
func SaveConfig(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// ConfigExists returns true if config file exists.
func ConfigExists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
