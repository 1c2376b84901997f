// ABOUTME: Background purge of expired, never-answered gate challenges.
// ABOUTME: Prevents unbounded growth of the pending challenge table.
package biometric

import (
	"context"
	"time"
)

// PurgeExpired removes expired challenges and returns how many were dropped.
func (g *Gate) PurgeExpired() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, ch := range g.pending {
		if !now.Before(ch.expires) {
			delete(g.pending, id)
			n++
		}
	}
	return n
}

// StartJanitor runs PurgeExpired every interval until ctx is done.
func (g *Gate) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.PurgeExpired()
			}
		}
	}()
}
