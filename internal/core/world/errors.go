package world

import "errors"

var (
	// Construction errors

	ErrInvalidSide   = errors.New("side must be left or right")
	ErrUnknownPitch  = errors.New("unknown pitch index")
	ErrInvalidPitch  = errors.New("invalid pitch geometry")
	ErrInvalidZone   = errors.New("invalid zone index")
	ErrEmptyGeometry = errors.New("calibration holds no pitches")

	// Validation errors

	ErrNotFinite         = errors.New("coordinate must be finite")
	ErrAngleOutOfRange   = errors.New("angle must be in [0, 2π)")
	ErrNegativeVelocity  = errors.New("velocity must be >= 0")
	ErrNegativeDimension = errors.New("dimension must be >= 0")
	ErrMissingField      = errors.New("observation field missing")
	ErrUnknownKey        = errors.New("unknown observation key")
)
