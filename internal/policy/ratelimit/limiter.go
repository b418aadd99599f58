// Package ratelimit spaces requests that share a key with a token bucket per key.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter keeps one single-token bucket per key, so consecutive Wait calls on
// a key are at least the requested interval apart.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a new Limiter.
func New() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until interval has elapsed since the previous Wait on key. The
// interval may change between calls; the new spacing applies from then on.
func (l *Limiter) Wait(ctx context.Context, key string, interval time.Duration) error {
	if key == "" {
		key = "unknown"
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(limit, 1)
		l.limiters[key] = limiter
	} else if limiter.Limit() != limit {
		limiter.SetLimit(limit)
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveThrottle(key, waited)
	}
	return nil
}

// HostKey returns the lowercased host of rawURL, or "unknown".
func HostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
