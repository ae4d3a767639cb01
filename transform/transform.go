// Package transform maps between the client-facing azimuth/elevation
// frame and the mount's native pan/tilt frame.
package transform

import (
	"fmt"
	"math"
)

// ConfigurationError indicates contradictory mount geometry. It is fatal
// at startup and must never occur once a Geometry has validated.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return "geometry configuration error: " + e.Reason
}

// Geometry is the operator-supplied mount calibration. It is created once
// at startup and never mutated.
type Geometry struct {
	// NorthOffset is the pan angle corresponding to true north: a target
	// of azimuth 0 commands pan = NorthOffset.
	NorthOffset float64
	// AzimuthDirection is +1 when the pan axis increases clockwise like
	// azimuth, -1 when it runs the other way. ElevationDirection is the
	// same for the tilt axis.
	AzimuthDirection   float64
	ElevationDirection float64
	// ElevationOffset is the elevation at tilt 0.
	ElevationOffset float64

	// WraparoundPan is the pan angle at which the mount's rotation
	// sensor discontinuously jumps. It must lie strictly outside
	// [PanMin, PanMax]; commanded motion never crosses it.
	WraparoundPan float64
	// PanMin and PanMax bound the reachable pan travel.
	PanMin, PanMax float64
	// TiltMin and TiltMax bound the reachable tilt travel.
	TiltMin, TiltMax float64
}

// Validate checks the geometry for contradictions. Any error returned is
// a ConfigurationError.
func (g Geometry) Validate() error {
	if g.AzimuthDirection != 1 && g.AzimuthDirection != -1 {
		return ConfigurationError{Reason: fmt.Sprintf("azimuth direction must be +1 or -1, got %v", g.AzimuthDirection)}
	}
	if g.ElevationDirection != 1 && g.ElevationDirection != -1 {
		return ConfigurationError{Reason: fmt.Sprintf("elevation direction must be +1 or -1, got %v", g.ElevationDirection)}
	}
	if g.PanMin >= g.PanMax {
		return ConfigurationError{Reason: fmt.Sprintf("pan limits [%v, %v] are empty", g.PanMin, g.PanMax)}
	}
	if g.TiltMin >= g.TiltMax {
		return ConfigurationError{Reason: fmt.Sprintf("tilt limits [%v, %v] are empty", g.TiltMin, g.TiltMax)}
	}
	w := Normalize(g.WraparoundPan)
	if w >= g.PanMin && w <= g.PanMax {
		return ConfigurationError{Reason: fmt.Sprintf("wraparound pan %v lies inside pan limits [%v, %v]", w, g.PanMin, g.PanMax)}
	}
	return nil
}

// Normalize reduces an angle modulo 360, always returning a value in
// [0, 360).
func Normalize(angle float64) float64 {
	angle = math.Mod(angle, 360)
	if angle < 0 {
		angle += 360
	}
	return angle
}

// ShortestDelta returns the smallest signed rotation from one angle to
// another, in (-180, 180].
func ShortestDelta(from, to float64) float64 {
	d := Normalize(to - from)
	if d > 180 {
		d -= 360
	}
	return d
}

// arcContains reports whether sweeping delta degrees from start passes
// through point. Endpoints are exclusive.
func arcContains(start, delta, point float64) bool {
	if delta > 0 {
		off := Normalize(point - start)
		return off > 0 && off < delta
	}
	off := Normalize(start - point)
	return off > 0 && off < -delta
}

// AllowedDirectionDelta is ShortestDelta, except that if the shortest
// path would cross any forbidden point it routes the other way around
// instead. If both directions are blocked it returns a
// ConfigurationError: with a valid wraparound point outside the pan
// limits that cannot happen, so it indicates a configuration bug rather
// than a runtime condition.
func AllowedDirectionDelta(from, to float64, forbidden ...float64) (float64, error) {
	d := ShortestDelta(from, to)
	if !crossesAny(from, d, forbidden) {
		return d, nil
	}
	long := d - 360
	if d < 0 {
		long = d + 360
	}
	if !crossesAny(from, long, forbidden) {
		return long, nil
	}
	return 0, ConfigurationError{Reason: fmt.Sprintf("no path from pan %v to %v avoids %v", from, to, forbidden)}
}

func crossesAny(from, delta float64, points []float64) bool {
	for _, p := range points {
		if arcContains(from, delta, p) {
			return true
		}
	}
	return false
}

// PanDelta computes the signed pan rotation from one in-travel pan angle
// to another, routed so the traversed arc never crosses the wraparound
// point or leaves the pan travel range.
func (g Geometry) PanDelta(from, to float64) (float64, error) {
	return AllowedDirectionDelta(from, to, Normalize(g.WraparoundPan), g.deadZoneMid())
}

// deadZoneMid returns the midpoint of the arc outside the pan travel
// range. Both endpoints of any commanded move are clamped inside the
// travel range, so a move exits the range exactly when its arc sweeps
// the whole dead zone, and checking the midpoint suffices.
func (g Geometry) deadZoneMid() float64 {
	width := Normalize(g.PanMin - g.PanMax)
	return Normalize(g.PanMax + width/2)
}

// AzElToPanTilt maps a target azimuth and elevation to mount pan and
// tilt. Targets outside the mount's travel are clamped to the nearest
// limit; limited reports whether clamping happened so the caller can
// surface it, never silently.
func (g Geometry) AzElToPanTilt(az, el float64) (pan, tilt float64, limited bool) {
	pan = Normalize(az*g.AzimuthDirection + g.NorthOffset)
	if pan < g.PanMin || pan > g.PanMax {
		pan = g.nearestPanLimit(pan)
		limited = true
	}
	tilt = (el - g.ElevationOffset) * g.ElevationDirection
	if tilt < g.TiltMin {
		tilt = g.TiltMin
		limited = true
	} else if tilt > g.TiltMax {
		tilt = g.TiltMax
		limited = true
	}
	return pan, tilt, limited
}

// PanTiltToAzEl maps a mount pan and tilt back to azimuth and elevation.
// It is the inverse of AzElToPanTilt for targets inside the travel range.
func (g Geometry) PanTiltToAzEl(pan, tilt float64) (az, el float64) {
	az = Normalize((pan - g.NorthOffset) * g.AzimuthDirection)
	el = tilt*g.ElevationDirection + g.ElevationOffset
	return az, el
}

func (g Geometry) nearestPanLimit(pan float64) float64 {
	toMin := math.Abs(ShortestDelta(pan, g.PanMin))
	toMax := math.Abs(ShortestDelta(pan, g.PanMax))
	if toMin < toMax {
		return g.PanMin
	}
	return g.PanMax
}
