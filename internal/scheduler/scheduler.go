// Package scheduler owns the recurring feed-refresh jobs.
// Each job runs on its own cron schedule and fails independently: a failed
// tick is logged and retried naturally on the next schedule, never stopping
// the loop or the other jobs.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Status describes the scheduler and its per-feed timers
type Status struct {
	Running          bool                 `json:"running"`
	IntradayActive   bool                 `json:"intraday_active"`
	HistoricalActive bool                 `json:"historical_active"`
	FxActive         bool                 `json:"fx_active"`
	LastRuns         map[string]time.Time `json:"last_runs"`
}

// intradayToggle reports whether the intraday timer should do work.
type intradayToggle interface {
	IsIntradayEnabled() bool
}

// Scheduler manages the background feed jobs
type Scheduler struct {
	cron     *cron.Cron
	log      zerolog.Logger
	settings intradayToggle

	intraday   *IntradayPriceJob
	historical *HistoricalPriceJob
	fx         *ExchangeRatesJob

	mu       sync.Mutex
	running  bool
	lastRuns map[string]time.Time
}

// New creates a new scheduler around the three feed jobs
func New(
	intraday *IntradayPriceJob,
	historical *HistoricalPriceJob,
	fx *ExchangeRatesJob,
	settings intradayToggle,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		log:        log.With().Str("component", "scheduler").Logger(),
		settings:   settings,
		intraday:   intraday,
		historical: historical,
		fx:         fx,
		lastRuns:   make(map[string]time.Time),
	}
}

// Start performs one immediate run of every job, then begins the recurring
// timers. The immediate FX run bootstraps core USD/EUR rates before the
// first valuation.
func (s *Scheduler) Start(intradayInterval, historicalInterval, fxInterval time.Duration) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.running = true
	s.mu.Unlock()

	// Bootstrap fetches, FX first so the initial recompute sees real rates.
	s.runJob(s.fx)
	s.runJob(s.historical)
	s.runJob(s.intraday)

	jobs := []struct {
		job      Job
		interval time.Duration
	}{
		{s.intraday, intradayInterval},
		{s.historical, historicalInterval},
		{s.fx, fxInterval},
	}

	for _, j := range jobs {
		job := j.job
		schedule := fmt.Sprintf("@every %s", j.interval)
		if _, err := s.cron.AddFunc(schedule, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
		}
		s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("Job registered")
	}

	s.cron.Start()
	s.log.Info().Msg("Scheduler started")

	return nil
}

// Stop cancels all schedules and waits for in-flight runs to complete.
// In-flight work is never aborted: a stale-but-valid write is preferable to
// a torn one.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// UpdateNow performs the same work as the intraday timer's tick,
// synchronously, for operator-triggered refresh.
func (s *Scheduler) UpdateNow() error {
	s.log.Info().Msg("Manual update triggered")
	s.markRun(s.intraday.Name())
	return s.intraday.RunNow()
}

// Status reports the scheduler state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastRuns := make(map[string]time.Time, len(s.lastRuns))
	for name, t := range s.lastRuns {
		lastRuns[name] = t
	}

	return Status{
		Running:          s.running,
		IntradayActive:   s.running && s.settings.IsIntradayEnabled(),
		HistoricalActive: s.running,
		FxActive:         s.running,
		LastRuns:         lastRuns,
	}
}

// runJob executes one job tick, containing its failure
func (s *Scheduler) runJob(job Job) {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	s.markRun(job.Name())

	if err := job.Run(); err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
		return
	}

	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
}

func (s *Scheduler) markRun(name string) {
	s.mu.Lock()
	s.lastRuns[name] = time.Now().UTC()
	s.mu.Unlock()
}
