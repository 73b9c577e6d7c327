package types

import (
	"strings"
	"time"
)

// Share offset choices offered when an appointment is created, in minutes.
const DefaultShareOffset = 30

// ShareOffsetOptions is the bounded set of lead times a user can pick.
var ShareOffsetOptions = []int{30, 60, 90, 120, 150}

// MaxShareOffsetMinutes bounds offsets read back from storage, which are
// not restricted to ShareOffsetOptions. One week.
const MaxShareOffsetMinutes = 7 * 24 * 60

// ValidShareOffset reports whether minutes is one of ShareOffsetOptions.
func ValidShareOffset(minutes int) bool {
	if minutes <= 0 {
		return false
	}
	for _, m := range ShareOffsetOptions {
		if m == minutes {
			return true
		}
	}
	return false
}

// Coordinates is a (latitude, longitude) reading from a LocationProvider.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Appointment is a planned meeting plus the lead time at which location
// disclosure should begin. Records are immutable once persisted.
type Appointment struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Location           string       `json:"location"`
	Time               string       `json:"time"`
	ShareOffsetMinutes int          `json:"share_offset_minutes"`
	Coordinates        *Coordinates `json:"coordinates,omitempty"`
}

// ShareOffset returns the lead time as a duration.
func (a Appointment) ShareOffset() time.Duration {
	return time.Duration(a.ShareOffsetMinutes) * time.Minute
}

// Candidate carries user input for a new appointment. The store assigns the
// ID; nothing else is filled in on its behalf.
type Candidate struct {
	Title              string
	Location           string
	Time               string
	ShareOffsetMinutes int
	Coordinates        *Coordinates
}

// Validate checks required fields after trimming whitespace and the share
// offset. It returns a *ValidationError naming every offending field.
func (c Candidate) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, FieldTitle)
	}
	if strings.TrimSpace(c.Location) == "" {
		missing = append(missing, FieldLocation)
	}
	if strings.TrimSpace(c.Time) == "" {
		missing = append(missing, FieldTime)
	}
	if !ValidShareOffset(c.ShareOffsetMinutes) {
		missing = append(missing, FieldShareOffset)
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
