// ABOUTME: init.go provides the init command to create or recreate subnavis configuration.
// ABOUTME: Optionally generates an OpenSSH key that serves as the device authenticator.
package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/oktaviaorg/subnavis/biometric"
)

const authKeyName = "gate_ed25519"

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite existing config")
	backend := fs.String("backend", "sqlite", "store backend (sqlite, bolt)")
	genKey := fs.Bool("gen-auth-key", false, "generate an OpenSSH key to act as the device authenticator")
	words := fs.Int("words", 0, "default phrase length for new wallets (12 or 24)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if ConfigExists() && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", ConfigPath())
	}

	if *backend != "sqlite" && *backend != "bolt" {
		return fmt.Errorf("backend must be sqlite or bolt, got %q", *backend)
	}

	cfg := defaultConfig()
	cfg.Backend = *backend
	cfg.Store = defaultStorePath(*backend)
	cfg.Words = *words
	if _, err := cfg.WalletConfig(); err != nil {
		return err
	}

	if *genKey {
		if err := EnsureConfigDir(); err != nil {
			return err
		}
		path := filepath.Join(ConfigDir(), authKeyName)
		if err := biometric.GenerateKeyFile(path, "subnavis gate"); err != nil {
			return err
		}
		cfg.AuthKey = path
		fmt.Printf("Authenticator key: %s\n", path)
	}

	if err := SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("Store: %s (%s)\n", cfg.Store, cfg.Backend)
	fmt.Println("\nConfiguration initialized successfully!")
	fmt.Println("You can now use 'subnavis create' or 'subnavis import'.")
	if cfg.AuthKey != "" {
		fmt.Println("Run 'subnavis biometric enable' after adding a wallet to gate access.")
	}
	return nil
}
