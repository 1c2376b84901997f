// ABOUTME: Per-wallet password attempt limiting using token bucket algorithm.
// ABOUTME: Rejects excess attempts before any key derivation work is done.
package wallet

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds attempt limiter settings.
type RateLimitConfig struct {
	Interval time.Duration // Time between allowed attempts; <= 0 disables limiting
	Burst    int           // Max burst size
}

// DefaultRateLimitConfig returns one attempt per 2s with a burst of 5.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Interval: 2 * time.Second,
		Burst:    5,
	}
}

// attemptLimiter manages per-wallet limiters keyed by record id.
type attemptLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	config   RateLimitConfig
}

func newAttemptLimiter(config RateLimitConfig) *attemptLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &attemptLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
}

func (s *attemptLimiter) get(walletID string) *rate.Limiter {
	s.mu.RLock()
	limiter, ok := s.limiters[walletID]
	s.mu.RUnlock()
	if ok {
		return limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if limiter, ok := s.limiters[walletID]; ok {
		return limiter
	}
	every := rate.Inf
	if s.config.Interval > 0 {
		every = rate.Every(s.config.Interval)
	}
	limiter = rate.NewLimiter(every, s.config.Burst)
	s.limiters[walletID] = limiter
	return limiter
}

func (s *attemptLimiter) allow(walletID string) bool {
	return s.get(walletID).Allow()
}

func (s *attemptLimiter) forget(walletID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, walletID)
}
