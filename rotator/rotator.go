package rotator

import (
	"context"
	"time"
)

// Mount is a pan/tilt positioner. Implementations talk to real hardware
// and may block or fail; callers are expected to retry on their own
// schedule.
type Mount interface {
	// Position returns the current pan and tilt angles in degrees.
	Position(ctx context.Context) (pan, tilt float64, err error)
	// SetTarget commands the mount toward the given pan and tilt angles.
	SetTarget(ctx context.Context, pan, tilt float64) error
}

// StatusCode reports the health of the most recent position report.
type StatusCode int

const (
	// Nominal means the position was polled successfully and the target
	// is within the mount's travel.
	Nominal StatusCode = iota
	// LimitReached means the requested target mapped outside the
	// mount's travel and was clamped to the nearest limit.
	LimitReached
	// DriverUnavailable means the mount transport failed or timed out;
	// the reported position is the last one successfully polled.
	DriverUnavailable
)

func (c StatusCode) String() string {
	switch c {
	case Nominal:
		return "NOMINAL"
	case LimitReached:
		return "LIMIT_REACHED"
	case DriverUnavailable:
		return "DRIVER_UNAVAILABLE"
	}
	return "UNKNOWN"
}

// Status is the most recently polled position, mapped back into the
// client-facing azimuth/elevation frame.
type Status struct {
	// AzPos and ElPos are in decimal degrees. Azimuth is normalized to
	// [0, 360).
	AzPos float64
	ElPos float64
	// Pan and Tilt are the raw mount angles the position was mapped from.
	Pan  float64
	Tilt float64
	// Tracking indicates the session has an active target.
	Tracking bool
	// TargetAz and TargetEl are the current target, valid when Tracking.
	TargetAz float64
	TargetEl float64

	Code StatusCode
	// Updated is when the position was last successfully polled.
	Updated time.Time
}

type StatusCallback func(status Status)
