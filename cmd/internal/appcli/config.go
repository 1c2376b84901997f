package appcli

import (
	"flag"
	"log/slog"
	"os"
	"strings"
)

// RuntimeConfig captures CLI flag inputs shared across commands.
type RuntimeConfig struct {
	Backend     string
	StorePath   string
	AuthKeyPath string
	LogLevel    string
}

// BindFlags attaches shared flags to provided FlagSet.
func (rc *RuntimeConfig) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&rc.Backend, "backend", rc.Backend, "store backend (sqlite, bolt)")
	fs.StringVar(&rc.StorePath, "store", rc.StorePath, "path to wallet store")
	fs.StringVar(&rc.AuthKeyPath, "auth-key", rc.AuthKeyPath, "OpenSSH key used as the biometric authenticator")
	fs.StringVar(&rc.LogLevel, "log-level", rc.LogLevel, "log level (debug, info, warn, error)")
}

// Logger returns a stderr text logger at the configured level.
func (rc RuntimeConfig) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(rc.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
