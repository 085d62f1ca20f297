package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// DriverState tracks where the form driver is in the submission
// sequence. Transitions are strictly ordered; calling an operation out
// of sequence is an interaction error.
type DriverState string

const (
	StateIdle             DriverState = "idle"
	StateDirectionSet     DriverState = "direction_set"
	StateDateEntered      DriverState = "date_entered"
	StatePassengersSet    DriverState = "passengers_set"
	StateSubmitted        DriverState = "submitted"
	StateResultsReady     DriverState = "results_ready"
	StateValidationFailed DriverState = "validation_failed"
	StateFailed           DriverState = "failed"
)

// DriverConfig holds configuration for the form driver.
type DriverConfig struct {
	// Page is the browser session to drive.
	Page Page

	// Logger for driver operations.
	Logger zerolog.Logger

	// PickerAttempts bounds the date-picker fallback (default: 2).
	PickerAttempts int

	// SubmitDeadline bounds the wait for a post-submit outcome
	// (default: 15s).
	SubmitDeadline time.Duration
}

// FormDriver walks one remote booking form through direction, dates,
// passengers and submission. One driver owns one page; never call its
// methods from two goroutines.
type FormDriver struct {
	page           Page
	logger         zerolog.Logger
	pickerAttempts int
	submitDeadline time.Duration

	state  DriverState
	banner string
}

// NewFormDriver creates a driver in the Idle state.
func NewFormDriver(cfg DriverConfig) *FormDriver {
	attempts := cfg.PickerAttempts
	if attempts <= 0 {
		attempts = 2
	}
	deadline := cfg.SubmitDeadline
	if deadline == 0 {
		deadline = 15 * time.Second
	}

	return &FormDriver{
		page:           cfg.Page,
		logger:         cfg.Logger,
		pickerAttempts: attempts,
		submitDeadline: deadline,
		state:          StateIdle,
	}
}

// State returns the driver's current state.
func (d *FormDriver) State() DriverState { return d.state }

// BannerText returns the validation banner captured by Submit, if any.
func (d *FormDriver) BannerText() string { return d.banner }

// Start loads the booking form. The driver stays Idle: the submission
// sequence has not begun yet.
func (d *FormDriver) Start(ctx context.Context) error {
	if err := d.page.Navigate(ctx); err != nil {
		return d.fail(&InteractionError{Op: "navigate", Err: err})
	}
	return nil
}

// SetDirection moves Idle -> DirectionSet. The form only exposes a
// binary swap, so the driver reads the current direction and toggles
// at most once; asking for the direction already shown is a no-op.
func (d *FormDriver) SetDirection(ctx context.Context, dir shuttle.Direction) error {
	if err := d.require(StateIdle, "set direction"); err != nil {
		return err
	}

	current, err := d.page.Direction(ctx)
	if err != nil {
		return d.fail(&InteractionError{Op: "read direction", Err: err})
	}

	if current != dir {
		if err := d.page.ToggleDirection(ctx); err != nil {
			return d.fail(&InteractionError{Op: "toggle direction", Err: err})
		}
		d.logger.Debug().Str("direction", dir.DisplayName()).Msg("direction toggled")
	}

	d.state = StateDirectionSet
	return nil
}

// SetDates moves DirectionSet -> DateEntered. A zero return date means
// one-way.
func (d *FormDriver) SetDates(ctx context.Context, depart, ret time.Time) error {
	if err := d.require(StateDirectionSet, "set dates"); err != nil {
		return err
	}

	if err := d.setDate(ctx, DateFieldOnward, depart); err != nil {
		return d.fail(err)
	}
	if !ret.IsZero() {
		if err := d.setDate(ctx, DateFieldReturn, ret); err != nil {
			return d.fail(err)
		}
	}

	d.state = StateDateEntered
	return nil
}

// setDate tries the two named strategies in fixed order: direct field
// assignment first, then the date-picker overlay.
func (d *FormDriver) setDate(ctx context.Context, field DateField, date time.Time) error {
	err := d.fillDirect(ctx, field, date)
	if err == nil {
		return nil
	}
	d.logger.Debug().
		Err(err).
		Str("field", string(field)).
		Msg("direct date assignment rejected, falling back to picker")

	return d.fillViaPicker(ctx, field, date)
}

// fillDirect assigns the field value and verifies the field accepted it.
func (d *FormDriver) fillDirect(ctx context.Context, field DateField, date time.Time) error {
	want := date.Format(DateLayout)
	if err := d.page.FillDateField(ctx, field, want); err != nil {
		return &InteractionError{Op: "fill " + string(field), Err: err}
	}

	got, err := d.page.ReadDateField(ctx, field)
	if err != nil {
		return &InteractionError{Op: "read back " + string(field), Err: err}
	}
	if got != want {
		return &InteractionError{
			Op:     "fill " + string(field),
			Detail: fmt.Sprintf("field shows %q, wanted %q", got, want),
		}
	}
	return nil
}

// fillViaPicker drives the date-picker overlay, retrying up to the
// configured bound.
func (d *FormDriver) fillViaPicker(ctx context.Context, field DateField, date time.Time) error {
	want := date.Format(DateLayout)

	var lastErr error
	for attempt := 1; attempt <= d.pickerAttempts; attempt++ {
		if err := d.page.PickDate(ctx, field, date); err != nil {
			lastErr = err
			continue
		}
		got, err := d.page.ReadDateField(ctx, field)
		if err != nil {
			lastErr = err
			continue
		}
		if got == want {
			return nil
		}
		lastErr = fmt.Errorf("picker left field at %q, wanted %q", got, want)
	}

	return &InteractionError{
		Op:     "pick " + string(field),
		Detail: fmt.Sprintf("gave up after %d attempts", d.pickerAttempts),
		Err:    lastErr,
	}
}

// SetPassengers moves DateEntered -> PassengersSet. Counts outside the
// form's fixed 1-6 enumeration fail before any page interaction.
func (d *FormDriver) SetPassengers(ctx context.Context, pax int) error {
	if err := d.require(StateDateEntered, "set passengers"); err != nil {
		return err
	}

	if pax < shuttle.MinTotalPax || pax > shuttle.MaxTotalPax {
		return &shuttle.FormatError{
			Field:  "passengers",
			Value:  fmt.Sprint(pax),
			Reason: fmt.Sprintf("form only offers %d-%d passengers", shuttle.MinTotalPax, shuttle.MaxTotalPax),
		}
	}

	if err := d.page.SelectPassengers(ctx, pax); err != nil {
		return d.fail(&InteractionError{Op: "select passengers", Err: err})
	}

	d.state = StatePassengersSet
	return nil
}

// Submit clicks search and races the two possible outcomes: a visible
// results container (-> ResultsReady, nil) or a validation banner
// (-> ValidationFailed, *ValidationError). Neither within the deadline
// is a *TimeoutError and the driver is Failed.
func (d *FormDriver) Submit(ctx context.Context) error {
	if err := d.require(StatePassengersSet, "submit"); err != nil {
		return err
	}

	if err := d.page.Submit(ctx); err != nil {
		return d.fail(&InteractionError{Op: "submit", Err: err})
	}
	d.state = StateSubmitted

	outcome, err := d.page.AwaitOutcome(ctx, d.submitDeadline)
	if err != nil {
		return d.fail(&InteractionError{Op: "await outcome", Err: err})
	}

	switch outcome {
	case OutcomeResults:
		d.state = StateResultsReady
		return nil
	case OutcomeValidation:
		banner, berr := d.page.BannerText(ctx)
		if berr != nil {
			return d.fail(&InteractionError{Op: "read validation banner", Err: berr})
		}
		d.banner = banner
		d.state = StateValidationFailed
		return &ValidationError{Message: banner}
	default:
		return d.fail(&TimeoutError{Op: "submit", After: d.submitDeadline})
	}
}

// Content returns the rendered results page. Only valid in
// ResultsReady.
func (d *FormDriver) Content(ctx context.Context) (string, error) {
	if err := d.require(StateResultsReady, "read content"); err != nil {
		return "", err
	}

	html, err := d.page.Content(ctx)
	if err != nil {
		return "", d.fail(&InteractionError{Op: "read content", Err: err})
	}
	return html, nil
}

func (d *FormDriver) require(want DriverState, op string) error {
	if d.state != want {
		return &InteractionError{
			Op:     op,
			Detail: fmt.Sprintf("driver is %s, wanted %s", d.state, want),
		}
	}
	return nil
}

func (d *FormDriver) fail(err error) error {
	d.state = StateFailed
	return err
}
