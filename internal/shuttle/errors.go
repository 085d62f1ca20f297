package shuttle

import "fmt"

// ErrorKind classifies a failed search for callers that treat failure
// as data (the monitor loop, the output sinks, the notifier).
type ErrorKind string

const (
	// ErrorKindNone marks a successful result.
	ErrorKindNone ErrorKind = ""

	// ErrorKindFormat: malformed input, caught before any page
	// interaction.
	ErrorKindFormat ErrorKind = "format"

	// ErrorKindInteraction: a page control could not be found or used
	// within its wait budget.
	ErrorKindInteraction ErrorKind = "interaction"

	// ErrorKindValidation: the site rejected the submission. A complete
	// round-trip with a negative outcome, not a broken interaction.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindParse: the results page did not match the expected table
	// shape. Distinct from a recognized-but-empty table.
	ErrorKindParse ErrorKind = "parse"

	// ErrorKindTimeout: neither results nor a validation banner appeared
	// in time. Transient; safe to retry on the next tick.
	ErrorKindTimeout ErrorKind = "timeout"
)

// FormatError reports malformed input. It is always raised before any
// remote interaction.
type FormatError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
