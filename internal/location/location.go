// Package location provides the LocationProvider implementations available
// to a command-line host, which has no device GPS of its own.
package location

import (
	"context"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// Static answers with a fixed position taken from configuration.
type Static struct {
	Position types.Coordinates
}

var _ types.LocationProvider = Static{}

// RequestPermission always grants; the user opted in by configuring a position.
func (Static) RequestPermission(context.Context) (types.Permission, error) {
	return types.PermissionGranted, nil
}

// CurrentPosition returns the configured position.
func (s Static) CurrentPosition(ctx context.Context) (types.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return types.Coordinates{}, err
	}
	return s.Position, nil
}

// Denied refuses permission. It is the provider when no position is
// configured.
type Denied struct{}

var _ types.LocationProvider = Denied{}

func (Denied) RequestPermission(context.Context) (types.Permission, error) {
	return types.PermissionDenied, nil
}

func (Denied) CurrentPosition(context.Context) (types.Coordinates, error) {
	return types.Coordinates{}, types.ErrPermissionDenied
}

// Acquire runs the one-shot permission-then-position flow. It returns
// types.ErrPermissionDenied when permission is refused.
func Acquire(ctx context.Context, p types.LocationProvider) (types.Coordinates, error) {
	perm, err := p.RequestPermission(ctx)
	if err != nil {
		return types.Coordinates{}, err
	}
	if perm != types.PermissionGranted {
		return types.Coordinates{}, types.ErrPermissionDenied
	}
	return p.CurrentPosition(ctx)
}
