package monitor

import (
	"context"
	"time"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// WeekendDates lists the Saturdays and Sundays of a month, oldest
// first, skipping days before today.
func WeekendDates(year int, month time.Month, today time.Time) []time.Time {
	cutoff := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	var dates []time.Time
	d := time.Date(year, month, 1, 0, 0, 0, 0, today.Location())
	for ; d.Month() == month; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			continue
		}
		if d.Before(cutoff) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// RunWeekendSweep searches every remaining weekend day of the month,
// stamping the template criteria with each date. The sweep stops early
// when the context is cancelled.
func (m *Monitor) RunWeekendSweep(ctx context.Context, year int, month time.Month, template shuttle.SearchCriteria) ([]shuttle.SearchResult, error) {
	m.setState(StateRunning)
	defer m.setState(StateStopped)
	return m.sweep(ctx, year, month, template)
}

func (m *Monitor) sweep(ctx context.Context, year int, month time.Month, template shuttle.SearchCriteria) ([]shuttle.SearchResult, error) {
	dates := WeekendDates(year, month, m.now())
	m.logger.Info().
		Int("year", year).
		Str("month", month.String()).
		Int("dates", len(dates)).
		Msg("starting weekend sweep")

	results := make([]shuttle.SearchResult, 0, len(dates))
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, m.RunOnce(ctx, template.WithDepartDate(d)))
	}
	return results, nil
}

// RunSweepContinuous repeats the weekend sweep every interval. It
// returns when the context is cancelled or the month runs out of
// weekend days to watch.
func (m *Monitor) RunSweepContinuous(ctx context.Context, year int, month time.Month, template shuttle.SearchCriteria) error {
	m.setState(StateRunning)
	defer m.setState(StateStopped)

	for {
		results, err := m.sweep(ctx, year, month, template)
		if err != nil {
			return nil
		}
		if len(results) == 0 {
			m.logger.Info().
				Int("year", year).
				Str("month", month.String()).
				Msg("no weekend days remain in the month")
			return nil
		}
		if !m.sleep(ctx) {
			return nil
		}
	}
}
