// Package scrape drives the KTMB Shuttle booking form and normalizes
// its results board into train records.
package scrape

import (
	"context"
	"time"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// DateLayout is the date format the booking form expects in its date
// fields ("01 Aug 2025").
const DateLayout = "02 Jan 2006"

// DateField identifies one of the form's two date inputs.
type DateField string

const (
	DateFieldOnward DateField = "OnwardDate"
	DateFieldReturn DateField = "ReturnDate"
)

// Outcome is what resolved first after submitting the form.
type Outcome int

const (
	// OutcomeNone means neither a results table nor a validation banner
	// appeared before the deadline.
	OutcomeNone Outcome = iota

	// OutcomeResults means the results container became visible.
	OutcomeResults

	// OutcomeValidation means a validation-error banner became visible.
	OutcomeValidation
)

// Page is the actuation boundary between the form driver and a live
// browser session. Implementations wrap one remote page with exactly
// one mutable form state; a Page must never be shared between
// concurrent drivers.
//
// Every method blocks with a bounded wait and honors ctx cancellation.
type Page interface {
	// Navigate loads the booking form, resetting any prior form state.
	Navigate(ctx context.Context) error

	// Direction reports which endpoint the form currently has as
	// origin. The form only exposes a binary swap control, so callers
	// read first and toggle on mismatch.
	Direction(ctx context.Context) (shuttle.Direction, error)

	// ToggleDirection performs one swap action.
	ToggleDirection(ctx context.Context) error

	// FillDateField assigns a value directly to a date input (the fast
	// path). The field may silently ignore the assignment; callers
	// verify via ReadDateField.
	FillDateField(ctx context.Context, field DateField, value string) error

	// ReadDateField returns a date input's current value.
	ReadDateField(ctx context.Context, field DateField) (string, error)

	// PickDate opens the date-picker overlay for the field and
	// navigates its month/year dropdowns and day grid to the date.
	PickDate(ctx context.Context, field DateField, date time.Time) error

	// SelectPassengers picks the "<n> Pax" option from the passenger
	// dropdown.
	SelectPassengers(ctx context.Context, pax int) error

	// Submit clicks the search control.
	Submit(ctx context.Context) error

	// AwaitOutcome races the results container against the validation
	// banner and reports whichever became visible first. OutcomeNone
	// with a nil error means the deadline passed with neither.
	AwaitOutcome(ctx context.Context, deadline time.Duration) (Outcome, error)

	// BannerText returns the visible validation banner's text.
	BannerText(ctx context.Context) (string, error)

	// Content returns the rendered HTML of the results page.
	Content(ctx context.Context) (string, error)
}
