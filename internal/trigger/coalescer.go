// Package trigger provides a small coalescing primitive for collapsing
// bursts of recompute requests into bounded work.
package trigger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Debouncer coalesces bursts of triggers into a single invocation fired
// one window after the last trigger (trailing edge). A CSV import of many
// ledger rows results in exactly one recompute.
type Debouncer struct {
	window time.Duration
	fn     func() error
	log    zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer around fn
func NewDebouncer(window time.Duration, fn func() error, log zerolog.Logger) *Debouncer {
	return &Debouncer{
		window: window,
		fn:     fn,
		log:    log.With().Str("component", "debouncer").Logger(),
	}
}

// Trigger schedules an invocation one window from now, replacing any
// pending one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		if err := d.fn(); err != nil {
			d.log.Error().Err(err).Msg("Debounced call failed")
		}
	})
}

// Stop cancels any pending invocation
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// RateLimiter refuses to invoke fn more than once per window. A skipped
// call is a no-op, not an error. When fn fails the window is reset so a
// genuine refresh can be retried immediately rather than being starved.
type RateLimiter struct {
	window time.Duration
	fn     func() error
	log    zerolog.Logger

	mu      sync.Mutex
	lastRun time.Time
}

// NewRateLimiter creates a rate limiter around fn
func NewRateLimiter(window time.Duration, fn func() error, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		window: window,
		fn:     fn,
		log:    log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Trigger invokes fn unless a prior invocation ran within the window.
// Returns true when fn ran, false on a throttle skip.
func (r *RateLimiter) Trigger() bool {
	r.mu.Lock()
	if !r.lastRun.IsZero() && time.Since(r.lastRun) < r.window {
		r.mu.Unlock()
		r.log.Debug().Msg("Rate limited, skipping")
		return false
	}
	r.lastRun = time.Now()
	r.mu.Unlock()

	if err := r.fn(); err != nil {
		r.log.Error().Err(err).Msg("Rate limited call failed, resetting window")
		r.mu.Lock()
		r.lastRun = time.Time{}
		r.mu.Unlock()
		return false
	}

	return true
}
