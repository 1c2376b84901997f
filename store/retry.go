// ABOUTME: Retry logic with exponential backoff for SQLite writes.
// ABOUTME: Retries only when another connection holds the database lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// RetryConfig controls retry behavior.
type RetryConfig struct {
	MaxAttempts int           // maximum number of attempts (default: 5)
	InitialWait time.Duration // wait before first retry (default: 50ms)
	MaxWait     time.Duration // maximum wait between retries (default: 1s)
	Multiplier  float64       // backoff multiplier (default: 2.0)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		InitialWait: 50 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2.0,
	}
}

// OpError wraps a storage failure with the operation and attempt count.
type OpError struct {
	Op      string
	Err     error
	Retries int
}

func (e *OpError) Error() string {
	if e.Retries > 1 {
		return fmt.Sprintf("store %s failed after %d attempts: %v", e.Op, e.Retries, e.Err)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// errBusy lets tests simulate lock contention without a second connection.
var errBusy = errors.New("database is locked")

// Retryable returns true if the error should trigger a retry.
// Busy and locked databases are retryable; everything else is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errBusy) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

func withRetry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	wait := cfg.InitialWait
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt == cfg.MaxAttempts {
			return &OpError{Op: op, Err: err, Retries: attempt}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait = time.Duration(float64(wait) * cfg.Multiplier)
		if cfg.MaxWait > 0 && wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}
}
