package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// ParseFunc normalizes a rendered results page. Injectable so tests
// can count invocations; nil means Parse.
type ParseFunc func(pageHTML string, dir shuttle.Direction) (*ParseReport, error)

// SessionConfig holds configuration for a search session.
type SessionConfig struct {
	// Page is the browser session the form driver will use. One page
	// serves one session at a time.
	Page Page

	// Logger for session operations.
	Logger zerolog.Logger

	// Parse overrides the result parser (tests only).
	Parse ParseFunc

	// PickerAttempts and SubmitDeadline are passed to the form driver.
	PickerAttempts int
	SubmitDeadline time.Duration

	// Now overrides the clock (tests only).
	Now func() time.Time
}

// Session orchestrates one complete search: drive the form, parse the
// page, filter the records. It never writes files or sends
// notifications; those belong to the caller.
type Session struct {
	page           Page
	logger         zerolog.Logger
	parse          ParseFunc
	pickerAttempts int
	submitDeadline time.Duration
	now            func() time.Time
}

// NewSession creates a search session over the given page.
func NewSession(cfg SessionConfig) *Session {
	parse := cfg.Parse
	if parse == nil {
		parse = Parse
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		page:           cfg.Page,
		logger:         cfg.Logger,
		parse:          parse,
		pickerAttempts: cfg.PickerAttempts,
		submitDeadline: cfg.SubmitDeadline,
		now:            now,
	}
}

// Run performs one search. Failure is data: Run always returns a
// SearchResult, with ErrorKind set instead of an error. A validation
// rejection short-circuits before the parser is ever invoked.
func (s *Session) Run(ctx context.Context, criteria shuttle.SearchCriteria) shuttle.SearchResult {
	result := shuttle.SearchResult{
		RunID:      uuid.New(),
		Criteria:   criteria,
		SearchedAt: s.now(),
	}

	if err := criteria.Validate(); err != nil {
		return s.failed(result, err)
	}

	driver := NewFormDriver(DriverConfig{
		Page:           s.page,
		Logger:         s.logger,
		PickerAttempts: s.pickerAttempts,
		SubmitDeadline: s.submitDeadline,
	})

	if err := driver.Start(ctx); err != nil {
		result.SetupFailed = true
		return s.failed(result, err)
	}

	if err := driver.SetDirection(ctx, criteria.Direction); err != nil {
		return s.failed(result, err)
	}
	if err := driver.SetDates(ctx, criteria.DepartDate, criteria.ReturnDate); err != nil {
		return s.failed(result, err)
	}
	if err := driver.SetPassengers(ctx, criteria.TotalPax()); err != nil {
		return s.failed(result, err)
	}
	if err := driver.Submit(ctx); err != nil {
		return s.failed(result, err)
	}

	pageHTML, err := driver.Content(ctx)
	if err != nil {
		return s.failed(result, err)
	}

	report, err := s.parse(pageHTML, criteria.Direction)
	if err != nil {
		return s.failed(result, err)
	}

	result.Success = true
	result.Records = report.Records
	result.Warnings = report.Warnings
	result.MatchingRecords = filterMatches(report.Records, criteria)

	s.logger.Info().
		Str("run_id", result.RunID.String()).
		Int("records", len(result.Records)).
		Int("matches", len(result.MatchingRecords)).
		Int("warnings", len(result.Warnings)).
		Msg("search completed")

	return result
}

func (s *Session) failed(result shuttle.SearchResult, err error) shuttle.SearchResult {
	result.Success = false
	result.ErrorKind = Kind(err)
	result.ErrorMessage = err.Error()

	// A validation rejection is an expected outcome, not a fault.
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		s.logger.Info().Str("banner", validationErr.Message).Msg("site rejected search")
	} else {
		s.logger.Warn().
			Err(err).
			Str("kind", string(result.ErrorKind)).
			Msg("search failed")
	}

	return result
}

func filterMatches(records []shuttle.TrainRecord, criteria shuttle.SearchCriteria) []shuttle.TrainRecord {
	matches := make([]shuttle.TrainRecord, 0, len(records))
	for _, r := range records {
		if r.Matches(criteria) {
			matches = append(matches, r)
		}
	}
	return matches
}
