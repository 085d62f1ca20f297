package monitor_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlewatch/shuttlewatch/internal/monitor"
	"github.com/shuttlewatch/shuttlewatch/internal/notify"
	"github.com/shuttlewatch/shuttlewatch/internal/output"
	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

var testCriteria = shuttle.SearchCriteria{
	Direction:  shuttle.SGToJB,
	DepartDate: time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
	Adults:     2,
	MinSeats:   2,
}

// fakeSearcher scripts one result per call via resultFor.
type fakeSearcher struct {
	calls     atomic.Int32
	resultFor func(call int) shuttle.SearchResult

	mu       sync.Mutex
	criteria []shuttle.SearchCriteria
}

func (f *fakeSearcher) Run(_ context.Context, criteria shuttle.SearchCriteria) shuttle.SearchResult {
	f.mu.Lock()
	f.criteria = append(f.criteria, criteria)
	f.mu.Unlock()

	call := int(f.calls.Add(1))
	result := f.resultFor(call)
	result.Criteria = criteria
	return result
}

func (f *fakeSearcher) seen() []shuttle.SearchCriteria {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]shuttle.SearchCriteria, len(f.criteria))
	copy(out, f.criteria)
	return out
}

type fakeNotifier struct {
	calls atomic.Int32

	mu   sync.Mutex
	last notify.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg notify.Message) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = msg
	f.mu.Unlock()
	return nil
}

func successWith(matches int) shuttle.SearchResult {
	records := make([]shuttle.TrainRecord, matches)
	for i := range records {
		records[i] = shuttle.TrainRecord{
			Number: "EP21", DepartureTime: "08:30", ArrivalTime: "09:05",
			Seats: 10, Direction: shuttle.SGToJB,
		}
	}
	return shuttle.SearchResult{
		RunID:           uuid.New(),
		Success:         true,
		Records:         records,
		MatchingRecords: records,
		SearchedAt:      time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC),
	}
}

func failureOf(kind shuttle.ErrorKind) shuttle.SearchResult {
	return shuttle.SearchResult{
		RunID:        uuid.New(),
		ErrorKind:    kind,
		ErrorMessage: "boom",
		SearchedAt:   time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestRunOnceRoutesResult(t *testing.T) {
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult { return successWith(2) }}
	notifier := &fakeNotifier{}
	sink := output.NewMemoryRepository()

	m := monitor.New(monitor.Config{
		Searcher: searcher,
		Notifier: notifier,
		Sink:     sink,
		Logger:   zerolog.Nop(),
	})

	result := m.RunOnce(context.Background(), testCriteria)

	assert.True(t, result.Success)
	assert.Len(t, sink.Results(), 1)
	assert.Equal(t, int32(1), notifier.calls.Load())

	status := m.Status()
	assert.Equal(t, 1, status.Iterations)
	assert.Equal(t, 2, status.TotalMatches)
	assert.True(t, status.LastSuccess)
}

func TestRunOnceNoMatchesNoAlert(t *testing.T) {
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult { return successWith(0) }}
	notifier := &fakeNotifier{}

	m := monitor.New(monitor.Config{Searcher: searcher, Notifier: notifier, Logger: zerolog.Nop()})
	m.RunOnce(context.Background(), testCriteria)

	assert.Zero(t, notifier.calls.Load())
}

func TestRunOnceFailedSearchStillPersisted(t *testing.T) {
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult { return failureOf(shuttle.ErrorKindParse) }}
	notifier := &fakeNotifier{}
	sink := output.NewMemoryRepository()

	m := monitor.New(monitor.Config{
		Searcher: searcher,
		Notifier: notifier,
		Sink:     sink,
		Logger:   zerolog.Nop(),
	})
	m.RunOnce(context.Background(), testCriteria)

	assert.Len(t, sink.Results(), 1)
	assert.Zero(t, notifier.calls.Load())
	assert.Equal(t, shuttle.ErrorKindParse, m.Status().LastErrorKind)
}

func TestRunOnceDeduplicatesAlerts(t *testing.T) {
	fixed := successWith(1)
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult { return fixed }}
	notifier := &fakeNotifier{}
	cache := notify.NewCache(notify.CacheConfig{
		Path:   filepath.Join(t.TempDir(), "cache.json"),
		Logger: zerolog.Nop(),
	})

	m := monitor.New(monitor.Config{
		Searcher: searcher,
		Notifier: notifier,
		Cache:    cache,
		Logger:   zerolog.Nop(),
	})

	m.RunOnce(context.Background(), testCriteria)
	m.RunOnce(context.Background(), testCriteria)

	assert.Equal(t, int32(1), notifier.calls.Load(), "unchanged availability must not re-alert")
}

func TestRunContinuousSurvivesMidStreamFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searcher := &fakeSearcher{resultFor: func(call int) shuttle.SearchResult {
		switch call {
		case 3, 4:
			return failureOf(shuttle.ErrorKindInteraction)
		case 5:
			defer cancel()
			return successWith(1)
		default:
			return successWith(0)
		}
	}}

	m := monitor.New(monitor.Config{
		Searcher:        searcher,
		Logger:          zerolog.Nop(),
		Interval:        time.Millisecond,
		PollGranularity: time.Millisecond,
	})

	err := m.RunContinuous(ctx, testCriteria)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, searcher.calls.Load(), int32(5))
	assert.Equal(t, monitor.StateStopped, m.Status().State)
}

func TestRunContinuousFirstSetupFailureIsFatal(t *testing.T) {
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult {
		result := failureOf(shuttle.ErrorKindInteraction)
		result.SetupFailed = true
		return result
	}}

	m := monitor.New(monitor.Config{
		Searcher:        searcher,
		Logger:          zerolog.Nop(),
		Interval:        time.Millisecond,
		PollGranularity: time.Millisecond,
	})

	err := m.RunContinuous(context.Background(), testCriteria)
	require.Error(t, err)
	assert.Equal(t, int32(1), searcher.calls.Load())
}

func TestRunContinuousOutlivesValidationFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searcher := &fakeSearcher{resultFor: func(call int) shuttle.SearchResult {
		switch {
		case call == 2:
			return failureOf(shuttle.ErrorKindValidation)
		case call >= 5:
			defer cancel()
		}
		return successWith(0)
	}}

	m := monitor.New(monitor.Config{
		Searcher:        searcher,
		Logger:          zerolog.Nop(),
		Interval:        time.Millisecond,
		PollGranularity: time.Millisecond,
	})

	err := m.RunContinuous(ctx, testCriteria)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, searcher.calls.Load(), int32(5))
	assert.Equal(t, monitor.StateStopped, m.Status().State)
}

func TestRunContinuousRetriesValidationWhenConfigured(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searcher := &fakeSearcher{resultFor: func(call int) shuttle.SearchResult {
		if call >= 3 {
			defer cancel()
		}
		return failureOf(shuttle.ErrorKindValidation)
	}}

	m := monitor.New(monitor.Config{
		Searcher:          searcher,
		Logger:            zerolog.Nop(),
		Interval:          time.Millisecond,
		PollGranularity:   time.Millisecond,
		RetryOnValidation: true,
	})

	err := m.RunContinuous(ctx, testCriteria)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, searcher.calls.Load(), int32(3))
}

// ctxProbeSearcher records whether its context was already dead when
// the search started.
type ctxProbeSearcher struct {
	ctxErr error
}

func (s *ctxProbeSearcher) Run(ctx context.Context, _ shuttle.SearchCriteria) shuttle.SearchResult {
	s.ctxErr = ctx.Err()
	return successWith(0)
}

func TestRunOnceSearchOutlivesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	probe := &ctxProbeSearcher{}
	m := monitor.New(monitor.Config{Searcher: probe, Logger: zerolog.Nop()})

	result := m.RunOnce(ctx, testCriteria)

	assert.True(t, result.Success)
	assert.NoError(t, probe.ctxErr, "an in-flight search must not inherit the loop's cancellation")
}

func TestCancellationNoticedWithinGranularity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult { return successWith(0) }}

	m := monitor.New(monitor.Config{
		Searcher:        searcher,
		Logger:          zerolog.Nop(),
		Interval:        time.Hour,
		PollGranularity: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- m.RunContinuous(ctx, testCriteria) }()

	// Let the first iteration land in the inter-search wait.
	for searcher.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	cancelledAt := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Less(t, time.Since(cancelledAt), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}
