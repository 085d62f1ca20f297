package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
	"github.com/shuttlewatch/shuttlewatch/internal/timeslot"
)

// InteractionError reports a page control that could not be found or
// used within its wait budget. It is never retried inside the form
// driver; retries happen at whole-search granularity in the monitor.
type InteractionError struct {
	Op     string
	Detail string
	Err    error
}

func (e *InteractionError) Error() string {
	msg := fmt.Sprintf("interaction failed: %s", e.Op)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InteractionError) Unwrap() error { return e.Err }

// ValidationError reports that the site itself rejected the submission.
// The round-trip succeeded; the outcome was negative.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "site rejected submission: " + e.Message
}

// ParseError reports a results page whose content did not match the
// expected table shape. Distinct from a recognized-but-empty table.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "unrecognized results page: " + e.Reason
}

// TimeoutError reports that neither a results table nor a validation
// banner appeared within the bound. Transient; safe to retry next tick.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no outcome within %s", e.Op, e.After)
}

// Kind classifies an error from the scrape layer into the result
// taxonomy.
func Kind(err error) shuttle.ErrorKind {
	if err == nil {
		return shuttle.ErrorKindNone
	}

	var (
		formatErr      *shuttle.FormatError
		interactionErr *InteractionError
		validationErr  *ValidationError
		parseErr       *ParseError
		timeoutErr     *TimeoutError
	)
	switch {
	case errors.As(err, &formatErr), errors.Is(err, timeslot.ErrInvalidTime):
		return shuttle.ErrorKindFormat
	case errors.As(err, &validationErr):
		return shuttle.ErrorKindValidation
	case errors.As(err, &parseErr):
		return shuttle.ErrorKindParse
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return shuttle.ErrorKindTimeout
	case errors.As(err, &interactionErr):
		return shuttle.ErrorKindInteraction
	default:
		return shuttle.ErrorKindInteraction
	}
}
