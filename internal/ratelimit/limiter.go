// Package ratelimit enforces the per-subject cooldown between identical
// evaluation or upload tasks.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// noExtraKey stands in for tasks that carry no disambiguating key, keeping the
// composite key shape stable.
const noExtraKey = "NA"

// retentionFactor controls how long idle entries survive before the sweeper
// drops them, as a multiple of the cooldown window.
const retentionFactor = 5

// Limiter admits a task only when no identical task for the same composite
// key ran within the cooldown window. Admission and recording are a single
// atomic step, so two racing requests for the same key cannot both pass.
type Limiter struct {
	window  time.Duration
	entries sync.Map // key -> int64 unix milliseconds of last admission
	now     func() time.Time
	logger  zerolog.Logger
}

// New builds a limiter with the given cooldown window.
func New(window time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		window: window,
		now:    time.Now,
		logger: logger.With().Str("component", "rate_limiter").Logger(),
	}
}

// TryAcquire admits the task and records the admission time, or rejects it
// when the previous admission for the same key is still inside the window.
func (l *Limiter) TryAcquire(subject, course, taskType, extraKey string) bool {
	key := buildKey(subject, course, taskType, extraKey)
	now := l.now().UnixMilli()

	for {
		prev, loaded := l.entries.LoadOrStore(key, now)
		if !loaded {
			return true
		}

		last := prev.(int64)
		if now-last <= l.window.Milliseconds() {
			return false
		}

		if l.entries.CompareAndSwap(key, prev, now) {
			return true
		}
		// Lost the swap to a concurrent admit; re-read and re-decide.
	}
}

// Window returns the configured cooldown window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Run sweeps idle entries until the context is cancelled, bounding the key
// table under long-running operation.
func (l *Limiter) Run(ctx context.Context) {
	interval := l.window
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.sweep()
			if removed > 0 {
				l.logger.Debug().Int("removed", removed).Msg("swept idle rate limit entries")
			}
		}
	}
}

func (l *Limiter) sweep() int {
	cutoff := l.now().UnixMilli() - retentionFactor*l.window.Milliseconds()
	removed := 0

	l.entries.Range(func(key, value any) bool {
		if value.(int64) < cutoff {
			// CompareAndDelete keeps a concurrent re-admission alive.
			if l.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})

	return removed
}

func buildKey(subject, course, taskType, extraKey string) string {
	if extraKey == "" {
		extraKey = noExtraKey
	}
	return strings.Join([]string{subject, course, taskType, extraKey}, ":")
}
