// Package timeslot classifies clock times into named buckets of the day.
package timeslot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Slot is a named bucket of the 24-hour clock.
//
// The five slots partition the day with half-open ranges; every valid
// time of day belongs to exactly one slot.
type Slot string

const (
	EarlyMorning Slot = "early_morning" // [00:00, 08:00)
	Morning      Slot = "morning"       // [08:00, 12:00)
	Afternoon    Slot = "afternoon"     // [12:00, 17:00)
	Evening      Slot = "evening"       // [17:00, 21:00)
	Night        Slot = "night"         // [21:00, 24:00)
)

// ErrInvalidTime is returned when a clock string cannot be parsed as a
// valid 24-hour time.
var ErrInvalidTime = errors.New("invalid time of day")

// ErrUnknownSlot is returned when a slot name does not match any slot.
var ErrUnknownSlot = errors.New("unknown time slot")

// Slot upper bounds in minutes-of-day, in day order.
var boundaries = []struct {
	until int
	slot  Slot
}{
	{8 * 60, EarlyMorning},
	{12 * 60, Morning},
	{17 * 60, Afternoon},
	{21 * 60, Evening},
	{24 * 60, Night},
}

// All returns the five slots in day order.
func All() []Slot {
	return []Slot{EarlyMorning, Morning, Afternoon, Evening, Night}
}

// Parse resolves a slot name as used on the command line.
func Parse(name string) (Slot, error) {
	s := Slot(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, name)
}

// clockRe accepts "15:04", "7:30" and "7:30 PM" style strings, which
// covers the forms the booking site renders in its timetable.
var clockRe = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*(?:([AaPp])\.?[Mm]\.?)?\s*$`)

// Classify maps a clock string to its slot. Classification is total
// over valid times: every 00:00 <= t < 24:00 resolves to exactly one
// slot. Malformed input yields ErrInvalidTime.
func Classify(clock string) (Slot, error) {
	m := clockRe.FindStringSubmatch(clock)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	switch strings.ToUpper(m[3]) {
	case "P":
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("%w: %q", ErrInvalidTime, clock)
		}
		if hour != 12 {
			hour += 12
		}
	case "A":
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("%w: %q", ErrInvalidTime, clock)
		}
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}

	minuteOfDay := hour*60 + minute
	for _, b := range boundaries {
		if minuteOfDay < b.until {
			return b.slot, nil
		}
	}
	// Unreachable: minuteOfDay < 1440 is guaranteed above.
	return Night, nil
}
