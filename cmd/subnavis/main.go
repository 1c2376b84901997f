package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/vault"
	"github.com/oktaviaorg/subnavis/wallet"
)

type command func(cfg *Config, args []string) error

var commands = map[string]command{
	"create":    cmdCreate,
	"import":    cmdImport,
	"track":     cmdTrack,
	"list":      cmdList,
	"select":    cmdSelect,
	"rename":    cmdRename,
	"reveal":    cmdReveal,
	"delete":    cmdDelete,
	"sign":      cmdSign,
	"address":   cmdAddress,
	"biometric": cmdBiometric,
	"audit":     cmdAudit,
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		return
	}
	// a missing .env is fine
	_ = godotenv.Load()

	name, args := os.Args[1], os.Args[2:]
	if name == "init" {
		if err := cmdInit(args); err != nil {
			fail(err)
		}
		return
	}
	cmd, ok := commands[name]
	if !ok {
		usage()
		os.Exit(2)
	}
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := cmd(cfg, args); err != nil {
		fail(err)
	}
}

// domainErrors have user-facing wording in wallet.UserMessage.
var domainErrors = []error{
	vault.ErrValidation,
	vault.ErrAuth,
	vault.ErrReadOnly,
	vault.ErrCancelled,
	vault.ErrLocked,
	vault.ErrExpired,
	vault.ErrNoSecret,
	vault.ErrPlatformUnavailable,
	vault.ErrDecryptFailed,
	vault.ErrIntegrity,
	store.ErrNoWallet,
}

func fail(err error) {
	log.Fatal(describe(err))
}

func describe(err error) string {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return wallet.UserMessage(err)
		}
	}
	return err.Error()
}

func usage() {
	fmt.Fprintf(os.Stderr, "subnavis commands: init | create | import | track | list | select | rename | reveal | delete | sign | address | biometric | audit\n")
}
