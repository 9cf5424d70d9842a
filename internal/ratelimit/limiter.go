// Package ratelimit gates request admission with a fixed per-identity window
// backed by a shared counter store. The limiter fails open: if the store is
// unreachable the request is admitted and a warning logged, because losing
// rate enforcement is cheaper than losing the ingestion path.
package ratelimit

import (
	"context"
	"time"

	"swing-backend/internal/shared/telemetry"
)

// Store holds per-identity window counters. A ttl of zero on Set keeps the
// key's existing expiry.
type Store interface {
	Get(ctx context.Context, key string) (count int64, found bool, err error)
	Set(ctx context.Context, key string, count int64, ttl time.Duration) error
}

// Limiter admits or denies requests per identity within a fixed window.
type Limiter struct {
	store     Store
	window    time.Duration
	threshold int64
}

// New constructs a Limiter. Non-positive window or threshold fall back to
// 60s / 10.
func New(store Store, window time.Duration, threshold int) *Limiter {
	if window <= 0 {
		window = 60 * time.Second
	}
	if threshold <= 0 {
		threshold = 10
	}
	return &Limiter{store: store, window: window, threshold: int64(threshold)}
}

// Window returns the configured window length, for Retry-After headers.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Admit records one request for the identity and reports whether it is
// allowed. The read-compare-write below is not atomic: two concurrent
// requests can both observe count n and write n+1. That race is a tolerated
// cost of the fail-open policy; the queue claim is where strictness lives.
func (l *Limiter) Admit(ctx context.Context, identity string) bool {
	key := "ratelimit:" + identity

	count, found, err := l.store.Get(ctx, key)
	if err != nil {
		telemetry.Warn("ratelimit.store_unavailable", map[string]any{
			"identity": identity,
			"error":    err.Error(),
		})
		return true
	}

	if !found {
		if err := l.store.Set(ctx, key, 1, l.window); err != nil {
			telemetry.Warn("ratelimit.store_unavailable", map[string]any{
				"identity": identity,
				"error":    err.Error(),
			})
		}
		return true
	}

	if count >= l.threshold {
		return false
	}

	if err := l.store.Set(ctx, key, count+1, 0); err != nil {
		telemetry.Warn("ratelimit.store_unavailable", map[string]any{
			"identity": identity,
			"error":    err.Error(),
		})
	}
	return true
}
