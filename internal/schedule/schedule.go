// Package schedule derives, from an appointment's time and share offset, the
// instant at which location disclosure should begin.
//
// The Scheduler holds no state about what has already fired. Every result is
// a pure function of (now, appointments), so it can be recomputed after a
// restart, and deleting an appointment cancels its disclosure simply by
// removing it from the next input.
package schedule

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// Layouts accepted for appointment times without an explicit offset. They
// are interpreted in the Scheduler's location.
var Layouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// FormatHint describes the accepted time text for user-facing messages.
const FormatHint = `YYYY-MM-DDTHH:MM (e.g. 2024-01-01T12:00) or RFC 3339 with offset`

// Trigger is a computed disclosure window for one appointment.
type Trigger struct {
	Appointment types.Appointment
	// At is when disclosure begins: Start minus the share offset.
	At time.Time
	// Start is the parsed appointment time.
	Start time.Time
}

// Evaluation partitions appointments relative to a point in time.
type Evaluation struct {
	// Due triggers have arrived but the appointment has not started.
	Due []Trigger
	// Upcoming triggers are still in the future.
	Upcoming []Trigger
	// Stale appointments have already started.
	Stale []Trigger
	// Failures holds one error per appointment whose time could not be
	// parsed; each wraps types.ErrParseFailure.
	Failures []error
}

// Scheduler computes trigger instants.
type Scheduler struct {
	loc *time.Location
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone for times without an explicit offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New returns a Scheduler using time.Local unless overridden.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for times without an offset.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// ParseTime parses appointment time text in the accepted formats.
func (s *Scheduler) ParseTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	for _, layout := range Layouts {
		if t, err := time.ParseInLocation(layout, text, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (want %s)", types.ErrParseFailure, text, FormatHint)
}

// ComputeTriggerInstant returns the appointment time minus its share offset.
func (s *Scheduler) ComputeTriggerInstant(a types.Appointment) (time.Time, error) {
	tr, err := s.trigger(a)
	if err != nil {
		return time.Time{}, err
	}
	return tr.At, nil
}

func (s *Scheduler) trigger(a types.Appointment) (Trigger, error) {
	start, err := s.ParseTime(a.Time)
	if err != nil {
		return Trigger{}, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	return Trigger{
		Appointment: a,
		At:          start.Add(-a.ShareOffset()),
		Start:       start,
	}, nil
}

// Evaluate classifies every appointment against now. Each partition is
// sorted by trigger instant; ties keep the order of appts, which for a
// store snapshot is creation order.
func (s *Scheduler) Evaluate(now time.Time, appts []types.Appointment) Evaluation {
	var ev Evaluation
	for _, a := range appts {
		tr, err := s.trigger(a)
		if err != nil {
			ev.Failures = append(ev.Failures, err)
			continue
		}
		switch {
		case !tr.Start.After(now):
			ev.Stale = append(ev.Stale, tr)
		case !tr.At.After(now):
			ev.Due = append(ev.Due, tr)
		default:
			ev.Upcoming = append(ev.Upcoming, tr)
		}
	}
	sortTriggers(ev.Due)
	sortTriggers(ev.Upcoming)
	sortTriggers(ev.Stale)
	return ev
}

// DueTriggers returns the appointments whose trigger instant is at or before
// now and whose time is still after now, ascending by trigger instant with
// ties in input order.
// Appointments with unparseable times are left out.
func (s *Scheduler) DueTriggers(now time.Time, appts []types.Appointment) []types.Appointment {
	due := s.Evaluate(now, appts).Due
	out := make([]types.Appointment, len(due))
	for i, tr := range due {
		out[i] = tr.Appointment
	}
	return out
}

// NextWake returns the earliest trigger instant still in the future.
func (s *Scheduler) NextWake(now time.Time, appts []types.Appointment) (time.Time, bool) {
	upcoming := s.Evaluate(now, appts).Upcoming
	if len(upcoming) == 0 {
		return time.Time{}, false
	}
	return upcoming[0].At, true
}

func sortTriggers(trs []Trigger) {
	slices.SortStableFunc(trs, func(a, b Trigger) int {
		return a.At.Compare(b.At)
	})
}
