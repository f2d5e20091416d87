package tracking

import "errors"

var (
	// ErrInvalidPoint is returned for a point whose ts, lat or lon is not finite
	ErrInvalidPoint = errors.New("invalid point")
	// ErrOutOfOrderPoint is returned for a point older than the track's last point
	ErrOutOfOrderPoint = errors.New("out of order point")
	// ErrMissingMapSurface is returned when a registry or track is built without a surface
	ErrMissingMapSurface = errors.New("missing map surface")
)
