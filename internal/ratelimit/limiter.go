// Package ratelimit gates anonymous submissions by network identity. The
// raw IP and user agent are hashed into an opaque key before anything is
// stored or logged.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"coverly/internal/ports"
)

// IdentityKey derives the stable, non-reversible key for a caller. Only
// this hash ever reaches storage or logs.
func IdentityKey(rawIP, userAgent string) string {
	sum := sha256.Sum256([]byte(rawIP + "\x00" + userAgent))
	return hex.EncodeToString(sum[:])
}

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Limiter enforces a rolling-window quota per identity key. If the counter
// store is unreachable it fails open: the submission proceeds with full
// remaining quota and the failure goes to the log, never to the caller.
type Limiter struct {
	repo   ports.RateLimitRepository
	max    int
	window time.Duration
	log    *slog.Logger
	now    func() time.Time
}

func New(repo ports.RateLimitRepository, max int, window time.Duration, log *slog.Logger) *Limiter {
	return &Limiter{repo: repo, max: max, window: window, log: log, now: time.Now}
}

// CheckAndConsume records one submission attempt for the caller and
// reports whether it may proceed. The window is rolling: usage is counted
// over [now-window, now), not a calendar bucket. A consumed slot is never
// rolled back.
func (l *Limiter) CheckAndConsume(ctx context.Context, rawIP, userAgent string) Decision {
	key := IdentityKey(rawIP, userAgent)
	windowStart := l.now().Add(-l.window)

	allowed, used, err := l.repo.Consume(ctx, key, windowStart, l.max)
	if err != nil {
		l.log.Error("rate limit store unavailable, failing open",
			"identity_key", key, "err", err)
		return Decision{Allowed: true, Remaining: l.max}
	}
	if !allowed {
		return Decision{Allowed: false, Remaining: 0}
	}
	remaining := l.max - used - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// RetryAfterSeconds is the hint returned with a limited response. The
// store does not expose the oldest hit's age, so the full window is the
// conservative answer.
func (l *Limiter) RetryAfterSeconds() int {
	return int(l.window / time.Second)
}
