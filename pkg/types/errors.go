package types

import (
	"errors"
	"strings"
)

// Field names reported by ValidationError.
const (
	FieldTitle       = "title"
	FieldLocation    = "location"
	FieldTime        = "time"
	FieldShareOffset = "shareOffset"
)

// Persistence and scheduling errors.
var (
	ErrPersistenceCorrupt = errors.New("persisted appointments are corrupt")
	ErrPersistenceWrite   = errors.New("failed to persist appointments")
	ErrParseFailure       = errors.New("cannot parse appointment time")
	ErrKeyNotFound        = errors.New("key not found")
)

// Location provider errors.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("current position unavailable")
)

// ValidationError reports candidate fields that are blank or out of range.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid appointment: missing or invalid " + strings.Join(e.Fields, ", ")
}

// Has reports whether field is among the offending fields.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}
