// Package monitor runs searches on an interval and routes the results
// to sinks and notifiers. One failed iteration never stops the loop.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/health"
	"github.com/shuttlewatch/shuttlewatch/internal/notify"
	"github.com/shuttlewatch/shuttlewatch/internal/output"
	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// Searcher runs one complete search. *scrape.Session implements this.
type Searcher interface {
	Run(ctx context.Context, criteria shuttle.SearchCriteria) shuttle.SearchResult
}

// State is the monitor's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateStopped    State = "stopped"
)

// Snapshot is a point-in-time view of the monitor, served on /status.
type Snapshot struct {
	State         State             `json:"state"`
	Iterations    int               `json:"iterations"`
	TotalMatches  int               `json:"total_matches"`
	LastRunAt     time.Time         `json:"last_run_at"`
	LastSuccess   bool              `json:"last_success"`
	LastErrorKind shuttle.ErrorKind `json:"last_error_kind,omitempty"`
}

// Config holds configuration for the monitor.
type Config struct {
	// Searcher runs each iteration's search (required).
	Searcher Searcher

	// Notifier receives alerts. Nil disables notifications.
	Notifier notify.Notifier

	// Cache suppresses duplicate alerts. Nil disables deduplication.
	Cache *notify.Cache

	// Sink persists results. Nil disables persistence.
	Sink output.Repository

	// Pinger signals iteration outcomes to healthchecks.io.
	Pinger *health.Pinger

	// Instruments records metrics. Nil disables them.
	Instruments *Instruments

	// Logger for iteration events.
	Logger zerolog.Logger

	// Interval between iterations (default: 30m).
	Interval time.Duration

	// SearchTimeout bounds one search (default: 5m). Cancelling the
	// loop never aborts an in-flight search; this does.
	SearchTimeout time.Duration

	// PollGranularity bounds how long a cancel can go unnoticed while
	// waiting between iterations (default: 1s).
	PollGranularity time.Duration

	// RetryOnValidation re-submits immediately after the site rejects
	// a submission instead of waiting out the interval. Off by
	// default: a rejected submission is simply tried again next tick.
	RetryOnValidation bool

	// NotifyAlways sends an alert for every successful search, matches
	// or not.
	NotifyAlways bool

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Monitor drives the search loop.
type Monitor struct {
	config Config
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	snapshot Snapshot
}

// New creates a monitor.
func New(cfg Config) *Monitor {
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = 5 * time.Minute
	}
	if cfg.PollGranularity == 0 {
		cfg.PollGranularity = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{
		config:   cfg,
		logger:   cfg.Logger,
		now:      cfg.Now,
		snapshot: Snapshot{State: StateIdle},
	}
}

// Status returns the current snapshot.
func (m *Monitor) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// RunOnce executes one iteration: search, persist, notify, ping. A
// cancel that lands mid-iteration lets the iteration finish; the loop
// notices the cancellation at the next wait.
func (m *Monitor) RunOnce(ctx context.Context, criteria shuttle.SearchCriteria) shuttle.SearchResult {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.SearchTimeout)
	defer cancel()

	runCtx, endSpan := m.config.Instruments.startSpan(runCtx, criteria)

	started := m.now()
	result := m.config.Searcher.Run(runCtx, criteria)
	elapsed := m.now().Sub(started)
	endSpan(result)

	m.record(result)
	m.config.Instruments.observe(runCtx, result, elapsed)
	m.persist(runCtx, result)
	m.announce(runCtx, result)
	m.ping(runCtx, result)

	return result
}

// RunContinuous repeats RunOnce every interval until the context is
// cancelled. A search that cannot even reach the form on the very
// first iteration is fatal; later failures only skip a tick.
func (m *Monitor) RunContinuous(ctx context.Context, criteria shuttle.SearchCriteria) error {
	m.setState(StateRunning)
	defer m.setState(StateStopped)

	for iteration := 1; ; iteration++ {
		result := m.RunOnce(ctx, criteria)

		if iteration == 1 && result.SetupFailed {
			return fmt.Errorf("first search never reached the booking form: %s", result.ErrorMessage)
		}
		if !result.Success && result.ErrorKind == shuttle.ErrorKindValidation && m.config.RetryOnValidation {
			m.logger.Warn().
				Int("iteration", iteration).
				Str("error", result.ErrorMessage).
				Msg("submission rejected, retrying without waiting")
			if ctx.Err() != nil {
				m.setState(StateCancelling)
				return nil
			}
			continue
		}

		m.logger.Info().
			Int("iteration", iteration).
			Bool("success", result.Success).
			Int("matches", len(result.MatchingRecords)).
			Dur("interval", m.config.Interval).
			Msg("iteration complete")

		if !m.sleep(ctx) {
			return nil
		}
	}
}

// sleep waits one interval, checking for cancellation every poll
// granularity. Returns false when the context was cancelled.
func (m *Monitor) sleep(ctx context.Context) bool {
	remaining := m.config.Interval
	for remaining > 0 {
		step := m.config.PollGranularity
		if step > remaining {
			step = remaining
		}
		select {
		case <-ctx.Done():
			m.setState(StateCancelling)
			return false
		case <-time.After(step):
		}
		remaining -= step
	}
	return true
}

func (m *Monitor) record(result shuttle.SearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.Iterations++
	m.snapshot.TotalMatches += len(result.MatchingRecords)
	m.snapshot.LastRunAt = result.SearchedAt
	m.snapshot.LastSuccess = result.Success
	m.snapshot.LastErrorKind = result.ErrorKind
}

func (m *Monitor) persist(ctx context.Context, result shuttle.SearchResult) {
	if m.config.Sink == nil {
		return
	}
	if err := m.config.Sink.Save(ctx, result); err != nil {
		m.logger.Error().Err(err).Str("run_id", result.RunID.String()).Msg("failed to persist result")
	}
}

func (m *Monitor) announce(ctx context.Context, result shuttle.SearchResult) {
	if m.config.Notifier == nil {
		return
	}
	if !notify.ShouldNotify(result, m.config.NotifyAlways) {
		return
	}
	if m.config.Cache != nil && len(result.MatchingRecords) > 0 && !m.config.Cache.ShouldNotify(result) {
		m.logger.Debug().Str("run_id", result.RunID.String()).Msg("availability unchanged, alert suppressed")
		return
	}

	if err := m.config.Notifier.Notify(ctx, notify.Summarize(result)); err != nil {
		m.logger.Error().Err(err).Msg("failed to send alert")
		return
	}

	if m.config.Cache != nil && len(result.MatchingRecords) > 0 {
		if err := m.config.Cache.MarkNotified(result); err != nil {
			m.logger.Error().Err(err).Msg("failed to update notification cache")
		}
	}
}

func (m *Monitor) ping(ctx context.Context, result shuttle.SearchResult) {
	if m.config.Pinger == nil || !m.config.Pinger.Enabled() {
		return
	}
	var err error
	if result.Success {
		err = m.config.Pinger.Ping(ctx)
	} else {
		err = m.config.Pinger.PingFailure(ctx)
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("healthcheck ping failed")
	}
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.State = s
}
