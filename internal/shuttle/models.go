// Package shuttle defines the domain model for KTMB Shuttle searches.
package shuttle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shuttlewatch/shuttlewatch/internal/timeslot"
)

// Direction identifies which endpoint is the origin for a search.
type Direction string

const (
	// JBToSG departs JB Sentral for Woodlands CIQ. This is the form's
	// default direction.
	JBToSG Direction = "JB_TO_SG"

	// SGToJB departs Woodlands CIQ for JB Sentral.
	SGToJB Direction = "SG_TO_JB"
)

// DirectionNames maps directions to their display names as shown on the
// booking form.
var DirectionNames = map[Direction]string{
	JBToSG: "JB Sentral - Woodlands CIQ",
	SGToJB: "Woodlands CIQ - JB Sentral",
}

// Opposite returns the reverse direction, used for return-leg records.
func (d Direction) Opposite() Direction {
	if d == JBToSG {
		return SGToJB
	}
	return JBToSG
}

// DisplayName returns the human-readable route name.
func (d Direction) DisplayName() string {
	if name, ok := DirectionNames[d]; ok {
		return name
	}
	return string(d)
}

// ParseDirection resolves a CLI direction name ("jb-to-sg", "sg-to-jb").
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "jb-to-sg", string(JBToSG):
		return JBToSG, nil
	case "sg-to-jb", string(SGToJB):
		return SGToJB, nil
	default:
		return "", &FormatError{Field: "direction", Value: s, Reason: "must be jb-to-sg or sg-to-jb"}
	}
}

// Passenger dropdown bounds. The form exposes "1 Pax" through "6 Pax";
// anything else cannot be selected.
const (
	MinTotalPax = 1
	MaxTotalPax = 6
)

// SearchCriteria is the immutable description of one search.
type SearchCriteria struct {
	Direction  Direction
	DepartDate time.Time
	// ReturnDate, when non-zero, requests a round-trip search.
	ReturnDate time.Time
	Adults     int
	Children   int
	// MinSeats is the minimum available-seat count for a train to match.
	MinSeats int
	// TimeSlots restricts matches by departure time. Empty means no
	// time filtering.
	TimeSlots []timeslot.Slot
}

// TotalPax is the passenger count selected on the form.
func (c SearchCriteria) TotalPax() int {
	return c.Adults + c.Children
}

// RoundTrip reports whether a return date was requested.
func (c SearchCriteria) RoundTrip() bool {
	return !c.ReturnDate.IsZero()
}

// Validate checks the criteria before any page interaction. All
// violations surface as *FormatError so they never reach the form
// driver.
func (c SearchCriteria) Validate() error {
	if c.Direction != JBToSG && c.Direction != SGToJB {
		return &FormatError{Field: "direction", Value: string(c.Direction), Reason: "unknown direction"}
	}
	if c.DepartDate.IsZero() {
		return &FormatError{Field: "depart_date", Reason: "required"}
	}
	if c.Adults < 1 || c.Adults > 9 {
		return &FormatError{Field: "adults", Value: fmt.Sprint(c.Adults), Reason: "must be 1-9"}
	}
	if c.Children < 0 || c.Children > 9 {
		return &FormatError{Field: "children", Value: fmt.Sprint(c.Children), Reason: "must be 0-9"}
	}
	if pax := c.TotalPax(); pax < MinTotalPax || pax > MaxTotalPax {
		return &FormatError{
			Field:  "passengers",
			Value:  fmt.Sprint(pax),
			Reason: fmt.Sprintf("form only offers %d-%d passengers", MinTotalPax, MaxTotalPax),
		}
	}
	if c.MinSeats < 1 {
		return &FormatError{Field: "min_seats", Value: fmt.Sprint(c.MinSeats), Reason: "must be >= 1"}
	}
	if c.RoundTrip() && c.ReturnDate.Before(c.DepartDate) {
		return &FormatError{Field: "return_date", Reason: "must not precede depart date"}
	}
	return nil
}

// WithDepartDate returns a copy of the criteria for a different date,
// used by the weekend sweep to stamp a template across a month.
func (c SearchCriteria) WithDepartDate(d time.Time) SearchCriteria {
	c.DepartDate = d
	c.ReturnDate = time.Time{}
	return c
}

// TrainRecord is one row of the results board.
type TrainRecord struct {
	Number        string
	DepartureTime string
	ArrivalTime   string
	Seats         int
	Direction     Direction
}

// Matches reports whether the record satisfies the criteria: enough
// seats, and a departure inside one of the requested slots (an empty
// slot set matches any departure).
func (r TrainRecord) Matches(c SearchCriteria) bool {
	if r.Seats < c.MinSeats {
		return false
	}
	if len(c.TimeSlots) == 0 {
		return true
	}
	slot, err := timeslot.Classify(r.DepartureTime)
	if err != nil {
		return false
	}
	for _, want := range c.TimeSlots {
		if slot == want {
			return true
		}
	}
	return false
}

// RowWarning records a results-table row that could not be parsed.
// Warnings are advisory: a bad row never fails the whole parse.
type RowWarning struct {
	Row    int
	Reason string
}

// SearchResult is the outcome of one search session. It is created
// fresh per search and immutable once returned.
type SearchResult struct {
	RunID   uuid.UUID
	Success bool

	// Records is everything the board showed; MatchingRecords is the
	// subset satisfying the criteria.
	Records         []TrainRecord
	MatchingRecords []TrainRecord

	Criteria   SearchCriteria
	SearchedAt time.Time

	Warnings []RowWarning

	// ErrorKind and ErrorMessage are set when Success is false.
	ErrorKind    ErrorKind
	ErrorMessage string

	// SetupFailed marks a failure before the form was even reached,
	// such as the site being unreachable. The monitor treats this as
	// fatal on the very first iteration only.
	SetupFailed bool
}
