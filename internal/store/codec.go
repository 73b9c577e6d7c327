package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// FormatVersion is the payload version written by this package. Payloads
// without an envelope (a bare JSON array) are read as version 0.
const FormatVersion = 1

// envelope is the persisted form of the whole appointment list.
type envelope struct {
	Version      int          `json:"version"`
	Appointments []recordJSON `json:"appointments"`
}

// recordJSON is one appointment as persisted. shareOffset is kept as the
// decimal text of the minute count.
type recordJSON struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Location    string             `json:"location"`
	Time        string             `json:"time"`
	ShareOffset string             `json:"shareOffset"`
	Coordinates *types.Coordinates `json:"coordinates,omitempty"`
}

// encode serializes appointments in list order.
func encode(appts []types.Appointment) (string, error) {
	env := envelope{
		Version:      FormatVersion,
		Appointments: make([]recordJSON, 0, len(appts)),
	}
	for _, a := range appts {
		env.Appointments = append(env.Appointments, recordJSON{
			ID:          a.ID,
			Title:       a.Title,
			Location:    a.Location,
			Time:        a.Time,
			ShareOffset: strconv.Itoa(a.ShareOffsetMinutes),
			Coordinates: a.Coordinates,
		})
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decode parses a persisted payload. A blank payload is an empty list. Any
// structural problem is reported as ErrPersistenceCorrupt.
func decode(payload string) ([]types.Appointment, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 {
		// A blank value holds no list.
		return []types.Appointment{}, nil
	}

	var records []recordJSON
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrPersistenceCorrupt, err)
		}
	} else {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrPersistenceCorrupt, err)
		}
		if env.Version < 1 || env.Version > FormatVersion {
			return nil, fmt.Errorf("%w: unsupported version %d", types.ErrPersistenceCorrupt, env.Version)
		}
		records = env.Appointments
	}

	appts := make([]types.Appointment, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		a, err := r.appointment()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", types.ErrPersistenceCorrupt, i, err)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", types.ErrPersistenceCorrupt, a.ID)
		}
		seen[a.ID] = true
		appts = append(appts, a)
	}
	return appts, nil
}

func (r recordJSON) appointment() (types.Appointment, error) {
	if r.ID == "" {
		return types.Appointment{}, fmt.Errorf("missing id")
	}
	for name, v := range map[string]string{
		types.FieldTitle:    r.Title,
		types.FieldLocation: r.Location,
		types.FieldTime:     r.Time,
	} {
		if strings.TrimSpace(v) == "" {
			return types.Appointment{}, fmt.Errorf("empty %s", name)
		}
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(r.ShareOffset))
	if err != nil {
		return types.Appointment{}, fmt.Errorf("shareOffset %q: %v", r.ShareOffset, err)
	}
	if minutes <= 0 || minutes > types.MaxShareOffsetMinutes {
		return types.Appointment{}, fmt.Errorf("shareOffset %d out of range 1..%d", minutes, types.MaxShareOffsetMinutes)
	}
	return types.Appointment{
		ID:                 r.ID,
		Title:              r.Title,
		Location:           r.Location,
		Time:               r.Time,
		ShareOffsetMinutes: minutes,
		Coordinates:        r.Coordinates,
	}, nil
}
