package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlewatch/shuttlewatch/internal/monitor"
	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

func days(dates []time.Time) []int {
	out := make([]int, len(dates))
	for i, d := range dates {
		out[i] = d.Day()
	}
	return out
}

func TestWeekendDatesAugust2025(t *testing.T) {
	today := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	dates := monitor.WeekendDates(2025, time.August, today)

	assert.Equal(t, []int{2, 3, 9, 10, 16, 17, 23, 24, 30, 31}, days(dates))
	for _, d := range dates {
		wd := d.Weekday()
		assert.True(t, wd == time.Saturday || wd == time.Sunday, "%s is not a weekend day", d)
	}
}

func TestWeekendDatesSkipPast(t *testing.T) {
	today := time.Date(2025, 8, 15, 13, 45, 0, 0, time.UTC)

	dates := monitor.WeekendDates(2025, time.August, today)

	assert.Equal(t, []int{16, 17, 23, 24, 30, 31}, days(dates))
}

func TestWeekendDatesIncludeToday(t *testing.T) {
	// A sweep started on a Saturday still covers that Saturday.
	today := time.Date(2025, 8, 16, 23, 0, 0, 0, time.UTC)

	dates := monitor.WeekendDates(2025, time.August, today)

	assert.Equal(t, []int{16, 17, 23, 24, 30, 31}, days(dates))
}

func TestWeekendDatesWholeMonthInPast(t *testing.T) {
	today := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, monitor.WeekendDates(2025, time.August, today))
}

func TestRunWeekendSweepStampsDates(t *testing.T) {
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult { return successWith(1) }}
	today := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	m := monitor.New(monitor.Config{
		Searcher: searcher,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return today },
	})

	template := testCriteria
	template.ReturnDate = testCriteria.DepartDate.AddDate(0, 0, 2)

	results, err := m.RunWeekendSweep(context.Background(), 2025, time.August, template)
	require.NoError(t, err)
	require.Len(t, results, 6)

	seen := searcher.seen()
	require.Len(t, seen, 6)
	assert.Equal(t, 16, seen[0].DepartDate.Day())
	assert.Equal(t, 31, seen[5].DepartDate.Day())
	for _, c := range seen {
		assert.False(t, c.RoundTrip(), "sweep searches are one-way")
		assert.Equal(t, template.Adults, c.Adults)
		assert.Equal(t, template.MinSeats, c.MinSeats)
	}
}

func TestRunWeekendSweepTracksState(t *testing.T) {
	var m *monitor.Monitor
	var during monitor.State
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult {
		during = m.Status().State
		return successWith(0)
	}}
	today := time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)

	m = monitor.New(monitor.Config{
		Searcher: searcher,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return today },
	})
	require.Equal(t, monitor.StateIdle, m.Status().State)

	_, err := m.RunWeekendSweep(context.Background(), 2025, time.August, testCriteria)
	require.NoError(t, err)
	assert.Equal(t, monitor.StateRunning, during)
	assert.Equal(t, monitor.StateStopped, m.Status().State)
}

func TestRunSweepContinuousEndsWithMonth(t *testing.T) {
	searcher := &fakeSearcher{resultFor: func(int) shuttle.SearchResult { return successWith(0) }}
	today := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	m := monitor.New(monitor.Config{
		Searcher: searcher,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return today },
	})

	err := m.RunSweepContinuous(context.Background(), 2025, time.August, testCriteria)
	require.NoError(t, err)
	assert.Zero(t, searcher.calls.Load())
	assert.Equal(t, monitor.StateStopped, m.Status().State)
}

func TestRunSweepContinuousStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	searcher := &fakeSearcher{resultFor: func(call int) shuttle.SearchResult {
		if call == 4 {
			cancel()
		}
		return successWith(0)
	}}
	today := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	m := monitor.New(monitor.Config{
		Searcher: searcher,
		Interval: time.Hour,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return today },
	})

	err := m.RunSweepContinuous(ctx, 2025, time.August, testCriteria)
	require.NoError(t, err)
	assert.EqualValues(t, 4, searcher.calls.Load())
}

func TestRunWeekendSweepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	searcher := &fakeSearcher{resultFor: func(call int) shuttle.SearchResult {
		if call == 2 {
			cancel()
		}
		return successWith(0)
	}}
	today := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	m := monitor.New(monitor.Config{
		Searcher: searcher,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return today },
	})

	results, err := m.RunWeekendSweep(ctx, 2025, time.August, testCriteria)
	require.Error(t, err)
	assert.Len(t, results, 2)
}
