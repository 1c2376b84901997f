// ABOUTME: Terminal prompts for passwords, recovery words, and authenticator confirmation.
// ABOUTME: Falls back to plain line reads when stdin is not a terminal.
package main

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/oktaviaorg/subnavis/biometric"
	"github.com/oktaviaorg/subnavis/vault"
)

var stdin = bufio.NewReader(os.Stdin)

// readLine prints prompt to stderr and reads one line from stdin.
// EOF before any input counts as the user backing out.
func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", vault.ErrCancelled
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads without echo when stdin is a terminal. The caller wipes the result.
func readSecret(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := readLine(prompt)
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(fd)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return raw, nil
}

// readNewPassword asks twice and only returns when both entries match.
func readNewPassword() ([]byte, error) {
	pw, err := readSecret("New wallet password: ")
	if err != nil {
		return nil, err
	}
	again, err := readSecret("Repeat password: ")
	if err != nil {
		vault.Wipe(pw)
		return nil, err
	}
	defer vault.Wipe(again)
	if subtle.ConstantTimeCompare(pw, again) != 1 {
		vault.Wipe(pw)
		return nil, &vault.ValidationError{Field: "password", Msg: "entries do not match"}
	}
	return pw, nil
}

// authKeyPassphrase prompts for the authenticator key's passphrase when the
// key file is encrypted. It returns nil for plain or missing keys. The caller
// wipes the result.
func authKeyPassphrase(ctx context.Context, path string) ([]byte, error) {
	if path == "" || !biometric.KeyFileEncrypted(path) {
		return nil, nil
	}
	pass, err := readSecret("Authenticator key passphrase: ")
	if err != nil {
		return nil, err
	}
	auth := &biometric.KeyFileAuthenticator{Path: path, Passphrase: pass}
	av, err := auth.Probe(ctx)
	if err != nil || !av.Available {
		vault.Wipe(pass)
		return nil, &vault.AuthError{Reason: "password", Cause: errors.New("authenticator key passphrase rejected")}
	}
	return pass, nil
}

// confirmPresence stands in for the platform prompt when a key file acts as
// the authenticator.
func confirmPresence(ctx context.Context, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	answer, err := readLine(fmt.Sprintf("Authenticator: %s. Continue? [y/N]: ", reason))
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return vault.ErrCancelled
}

// termPrompter walks the user through backing up a new phrase.
type termPrompter struct {
	out io.Writer
}

func (p termPrompter) ShowMnemonic(ctx context.Context, words []string) error {
	fmt.Fprintln(p.out, "Write down your recovery phrase. Anyone who has it controls the wallet.")
	fmt.Fprintln(p.out)
	printWords(p.out, words)
	fmt.Fprintln(p.out)
	answer, err := readLine("Press Enter once it is written down (or type 'cancel'): ")
	if err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(answer), "cancel") {
		return vault.ErrCancelled
	}
	clearScreen(p.out)
	return ctx.Err()
}

func (p termPrompter) AskWords(ctx context.Context, positions []int) ([]string, error) {
	fmt.Fprintln(p.out, "Confirm your backup.")
	answers := make([]string, 0, len(positions))
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		word, err := readLine(fmt.Sprintf("Word #%d: ", pos))
		if err != nil {
			return nil, err
		}
		answers = append(answers, word)
	}
	return answers, nil
}

func printWords(out io.Writer, words []string) {
	for i, w := range words {
		fmt.Fprintf(out, "%2d. %-10s", i+1, w)
		if (i+1)%4 == 0 {
			fmt.Fprintln(out)
		}
	}
	if len(words)%4 != 0 {
		fmt.Fprintln(out)
	}
}

func clearScreen(out io.Writer) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return
	}
	fmt.Fprint(out, "\033[H\033[2J")
}
