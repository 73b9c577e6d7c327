// Package calendar renders appointments as an iCalendar feed so they can be
// imported into a calendar application. Each event carries a display alarm
// at the appointment's share offset.
package calendar

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/mesh-intelligence/rendezvous/internal/schedule"
	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// ProductID identifies the generator in exported feeds.
const ProductID = "-//mesh-intelligence//rendezvous//EN"

// defaultDuration is the event length; appointments carry no end time.
const defaultDuration = time.Hour

// Export renders appts as a VCALENDAR. Appointments whose time cannot be
// parsed are skipped and returned as failures, each wrapping
// types.ErrParseFailure.
func Export(appts []types.Appointment, s *schedule.Scheduler, stamp time.Time) (string, []error) {
	if s == nil {
		s = schedule.New()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	var failures []error
	for _, a := range appts {
		start, err := s.ParseTime(a.Time)
		if err != nil {
			failures = append(failures, fmt.Errorf("appointment %s: %w", a.ID, err))
			continue
		}

		event := cal.AddEvent(a.ID)
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(start.UTC())
		event.SetEndAt(start.Add(defaultDuration).UTC())
		event.SetSummary(a.Title)
		event.SetLocation(a.Location)
		event.SetDescription(fmt.Sprintf("Location sharing starts %d minutes before.", a.ShareOffsetMinutes))
		if a.Coordinates != nil {
			event.SetProperty(ical.ComponentPropertyGeo,
				fmt.Sprintf("%f;%f", a.Coordinates.Latitude, a.Coordinates.Longitude))
		}

		alarm := event.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", a.ShareOffsetMinutes))
		alarm.SetProperty(ical.ComponentPropertyDescription, "Start sharing location: "+a.Title)
	}

	return cal.Serialize(), failures
}
