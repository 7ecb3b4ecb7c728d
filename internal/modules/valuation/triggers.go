package valuation

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/trigger"
)

// Triggers exposes throttled recompute entry points to the CRUD layer.
// Ledger writes call the debounced trigger so a burst of mutations (a CSV
// import) collapses into one recompute; the rate-limited trigger bounds how
// often ad hoc callers can force a refresh.
type Triggers struct {
	debouncer   *trigger.Debouncer
	rateLimiter *trigger.RateLimiter
}

// NewTriggers wires the coalescing primitives around the engine
func NewTriggers(engine *Engine, debounceWindow, rateLimitWindow time.Duration, log zerolog.Logger) *Triggers {
	recompute := func() error {
		_, err := engine.Recompute(nil)
		return err
	}

	return &Triggers{
		debouncer:   trigger.NewDebouncer(debounceWindow, recompute, log),
		rateLimiter: trigger.NewRateLimiter(rateLimitWindow, recompute, log),
	}
}

// TriggerDebouncedRecompute schedules a recompute after the debounce window,
// coalescing with other pending triggers.
func (t *Triggers) TriggerDebouncedRecompute() {
	t.debouncer.Trigger()
}

// TriggerRateLimitedRecompute runs a recompute unless one ran within the
// rate-limit window. Returns false on a throttle skip.
func (t *Triggers) TriggerRateLimitedRecompute() bool {
	return t.rateLimiter.Trigger()
}

// Stop cancels any pending debounced recompute
func (t *Triggers) Stop() {
	t.debouncer.Stop()
}
