// ABOUTME: Wallet commands for the subnavis CLI: create, import, reveal, sign, and friends.
// ABOUTME: Each command opens the store, unlocks the controller, runs, then closes.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/oktaviaorg/subnavis/cmd/internal/appcli"
	"github.com/oktaviaorg/subnavis/cmd/subnavis/internal/inspect"
	"github.com/oktaviaorg/subnavis/store"
	"github.com/oktaviaorg/subnavis/vault"
	"github.com/oktaviaorg/subnavis/wallet"
)

// newFlags builds a FlagSet whose shared runtime flags default to cfg.
func newFlags(name string, cfg *Config) (*flag.FlagSet, *appcli.RuntimeConfig) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	rt := &appcli.RuntimeConfig{
		Backend:     cfg.Backend,
		StorePath:   cfg.Store,
		AuthKeyPath: cfg.AuthKey,
		LogLevel:    cfg.LogLevel,
	}
	rt.BindFlags(fs)
	return fs, rt
}

// withApp opens the store, passes the unlock gate, and hands the controller to fn.
func withApp(cfg *Config, rt *appcli.RuntimeConfig, fn func(context.Context, *wallet.Controller) error) (err error) {
	wc, err := cfg.WalletConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	keyPath := expandPath(rt.AuthKeyPath)
	pass, err := authKeyPassphrase(ctx, keyPath)
	if err != nil {
		return err
	}
	defer vault.Wipe(pass)

	app, err := appcli.NewApp(appcli.Options{
		Backend:           rt.Backend,
		StorePath:         expandPath(rt.StorePath),
		AuthKeyPath:       keyPath,
		AuthKeyPassphrase: pass,
		Confirm:           confirmPresence,
		Wallet:            wc,
		Logger:            rt.Logger(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctl := app.Controller()
	if err := ctl.Unlock(ctx); err != nil {
		return err
	}
	return fn(ctx, ctl)
}

// resolveIndex maps -1 to the active wallet.
func resolveIndex(ctx context.Context, ctl *wallet.Controller, index int) (int, error) {
	if index >= 0 {
		return index, nil
	}
	_, active, err := ctl.Active(ctx)
	return active, err
}

func cmdCreate(cfg *Config, args []string) error {
	fs, rt := newFlags("create", cfg)
	name := fs.String("name", "", "wallet name")
	words := fs.Int("words", 0, "phrase length: 12 or 24 (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		password, err := readNewPassword()
		if err != nil {
			return err
		}
		defer vault.Wipe(password)

		rec, err := ctl.CreateWallet(ctx, *name, password, *words, termPrompter{out: os.Stdout})
		if err != nil {
			return err
		}
		fmt.Printf("Created %q\n%s\n", rec.Name, rec.Address)
		return nil
	})
}

func cmdImport(cfg *Config, args []string) error {
	fs, rt := newFlags("import", cfg)
	name := fs.String("name", "", "wallet name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		phrase, err := readSecret("Recovery phrase: ")
		if err != nil {
			return err
		}
		defer vault.Wipe(phrase)
		password, err := readNewPassword()
		if err != nil {
			return err
		}
		defer vault.Wipe(password)

		rec, err := ctl.ImportWallet(ctx, *name, string(phrase), password)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %q\n%s\n", rec.Name, rec.Address)
		return nil
	})
}

func cmdTrack(cfg *Config, args []string) error {
	fs, rt := newFlags("track", cfg)
	name := fs.String("name", "", "wallet name")
	address := fs.String("address", "", "SS58 address to watch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *address == "" && fs.NArg() > 0 {
		*address = fs.Arg(0)
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		rec, err := ctl.TrackAddress(ctx, *name, *address)
		if err != nil {
			return err
		}
		fmt.Printf("Watching %q\n%s\n", rec.Name, rec.Address)
		return nil
	})
}

func cmdList(cfg *Config, args []string) error {
	fs, rt := newFlags("list", cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		recs, err := ctl.List(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("no wallets")
			return nil
		}
		_, active, err := ctl.Active(ctx)
		if err != nil {
			return err
		}
		for i, rec := range recs {
			marker := " "
			if i == active {
				marker = "*"
			}
			kind := "keyed"
			if rec.WatchOnly {
				kind = "watch-only"
			}
			fmt.Printf("%s %d\t%s\t%s\t%s\t%s\n", marker, i, rec.Name, rec.Address, kind, rec.CreatedAt().Format(time.RFC3339))
		}
		return nil
	})
}

func cmdSelect(cfg *Config, args []string) error {
	fs, rt := newFlags("select", cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: subnavis select <index>")
	}
	index, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		if err := ctl.Select(ctx, index); err != nil {
			return err
		}
		rec, _, err := ctl.Active(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Active wallet: %s (%s)\n", rec.Name, rec.Address)
		return nil
	})
}

func cmdRename(cfg *Config, args []string) error {
	fs, rt := newFlags("rename", cfg)
	index := fs.Int("index", -1, "wallet index (default active)")
	name := fs.String("name", "", "new name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		i, err := resolveIndex(ctx, ctl, *index)
		if err != nil {
			return err
		}
		return ctl.Rename(ctx, i, *name)
	})
}

func cmdReveal(cfg *Config, args []string) error {
	fs, rt := newFlags("reveal", cfg)
	index := fs.Int("index", -1, "wallet index (default active)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		i, err := resolveIndex(ctx, ctl, *index)
		if err != nil {
			return err
		}
		password, err := readSecret("Wallet password: ")
		if err != nil {
			return err
		}
		defer vault.Wipe(password)

		phrase, err := ctl.RevealMnemonic(ctx, i, password)
		if err != nil {
			return err
		}
		printWords(os.Stdout, strings.Fields(string(phrase)))
		vault.Wipe(phrase)
		fmt.Fprintln(os.Stderr, "\nPress Enter to hide.")

		waitHidden(ctx, ctl, i)
		ctl.HideRevealed()
		clearScreen(os.Stdout)
		return nil
	})
}

// waitHidden returns when the user presses Enter or the reveal slot expires.
func waitHidden(ctx context.Context, ctl *wallet.Controller, index int) {
	enter := make(chan struct{})
	go func() {
		_, _ = stdin.ReadString('\n')
		close(enter)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-enter:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			phrase, err := ctl.ReadRevealed(ctx, index)
			if err != nil {
				fmt.Fprintln(os.Stderr, wallet.UserMessage(err))
				return
			}
			vault.Wipe(phrase)
		}
	}
}

func cmdDelete(cfg *Config, args []string) error {
	fs, rt := newFlags("delete", cfg)
	index := fs.Int("index", -1, "wallet index (default active)")
	yes := fs.Bool("yes", false, "skip the name confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		i, err := resolveIndex(ctx, ctl, *index)
		if err != nil {
			return err
		}
		recs, err := ctl.List(ctx)
		if err != nil {
			return err
		}
		if i >= len(recs) {
			return ctl.DeleteWallet(ctx, i)
		}
		rec := recs[i]
		if !*yes {
			fmt.Fprintf(os.Stderr, "Deleting %q removes its encrypted phrase from this device.\n", rec.Name)
			typed, err := readLine("Type the wallet name to confirm: ")
			if err != nil {
				return err
			}
			if strings.TrimSpace(typed) != rec.Name {
				return vault.ErrCancelled
			}
		}
		if err := ctl.DeleteWallet(ctx, i); err != nil {
			return err
		}
		fmt.Printf("Deleted %q\n", rec.Name)
		return nil
	})
}

func cmdSign(cfg *Config, args []string) error {
	fs, rt := newFlags("sign", cfg)
	index := fs.Int("index", -1, "wallet index (default active)")
	message := fs.String("message", "", "message to sign")
	hexMsg := fs.String("hex", "", "hex-encoded message to sign")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := signPayload(*message, *hexMsg)
	if err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		i, err := resolveIndex(ctx, ctl, *index)
		if err != nil {
			return err
		}
		password, err := readSecret("Wallet password: ")
		if err != nil {
			return err
		}
		defer vault.Wipe(password)

		sig, err := ctl.Sign(ctx, i, password, msg)
		if err != nil {
			return err
		}
		fmt.Printf("0x%s\n", hex.EncodeToString(sig[:]))
		return nil
	})
}

// signPayload picks the bytes to sign. A hex value, with or without 0x, wins
// over the plain message.
func signPayload(message, hexMsg string) ([]byte, error) {
	if hexMsg == "" {
		return []byte(message), nil
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(hexMsg, "0x"))
	if err != nil {
		return nil, &vault.ValidationError{Field: "message", Msg: "not valid hex"}
	}
	return decoded, nil
}

func cmdAddress(cfg *Config, args []string) error {
	fs, rt := newFlags("address", cfg)
	index := fs.Int("index", -1, "wallet index (default active)")
	showQR := fs.Bool("qr", false, "print the address as a QR code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		i, err := resolveIndex(ctx, ctl, *index)
		if err != nil {
			return err
		}
		recs, err := ctl.List(ctx)
		if err != nil {
			return err
		}
		if i >= len(recs) {
			return fmt.Errorf("wallet %d: %w", i, store.ErrNoWallet)
		}
		addr := recs[i].Address
		fmt.Println(addr)
		if *showQR {
			qr, err := qrcode.New(addr, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("create QR code: %w", err)
			}
			fmt.Print(qr.ToSmallString(false))
		}
		return nil
	})
}

func cmdBiometric(cfg *Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: subnavis biometric enable|disable|status")
	}
	sub := args[0]
	fs, rt := newFlags("biometric "+sub, cfg)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	return withApp(cfg, rt, func(ctx context.Context, ctl *wallet.Controller) error {
		switch sub {
		case "status":
			st, err := ctl.BiometricStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("available: %t\n", st.Available)
			if st.Available {
				fmt.Printf("type: %s\n", st.Kind)
			}
			fmt.Printf("enabled: %t\n", st.Enabled)
			return nil
		case "enable":
			cred, err := ctl.EnableBiometric(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Biometric unlock enabled (%s)\n", cred.ID)
			return nil
		case "disable":
			if err := ctl.DisableBiometric(ctx); err != nil {
				return err
			}
			fmt.Println("Biometric unlock disabled")
			return nil
		}
		return fmt.Errorf("unknown biometric command %q", sub)
	})
}

func cmdAudit(cfg *Config, args []string) error {
	fs, rt := newFlags("audit", cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	kv, err := appcli.OpenKV(rt.Backend, expandPath(rt.StorePath))
	if err != nil {
		return err
	}
	defer func() {
		_ = kv.Close()
	}()

	insp, err := inspect.New(kv)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rows, err := insp.Summary(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Printf("%s\t%d bytes\n", row.Key, row.Bytes)
	}
	findings, err := insp.Audit(ctx)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		fmt.Println("no plaintext recovery phrases found")
		return nil
	}
	for _, f := range findings {
		fmt.Printf("PLAINTEXT PHRASE: key=%s words=%d offset=%d\n", f.Key, f.Words, f.Offset)
	}
	return fmt.Errorf("%d plaintext recovery phrase(s) in store", len(findings))
}
