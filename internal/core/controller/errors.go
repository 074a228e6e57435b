package controller

import "errors"

var (
	ErrPowerRange     = errors.New("power out of range 0..100")
	ErrNegativeTiming = errors.New("negative actuator duration")
	ErrNotFinite      = errors.New("distance or angle is not finite")
	ErrAckTimeout     = errors.New("acknowledgment timed out")
)
