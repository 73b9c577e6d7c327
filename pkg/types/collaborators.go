package types

import "context"

// KV is the durable string-keyed store the appointment list lives in.
type KV interface {
	// Get returns the value stored under key.
	// Returns ErrKeyNotFound if nothing was ever stored there.
	Get(ctx context.Context, key string) (string, error)

	// Set replaces the value under key. The write is all-or-nothing.
	Set(ctx context.Context, key, value string) error

	// Close releases backend resources. Idempotent.
	Close() error
}

// Permission is the outcome of a location permission request.
type Permission string

// Permission outcomes.
const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// LocationProvider supplies a one-shot device position after permission is
// granted. Both calls may block until the platform answers.
type LocationProvider interface {
	RequestPermission(ctx context.Context) (Permission, error)
	CurrentPosition(ctx context.Context) (Coordinates, error)
}
