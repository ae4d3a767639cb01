package jpth

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

// Simulator emulates the mount's CP_Update.xml endpoint for tests and
// for running the bridge without hardware. Each jog command moves the
// simulated axes by force*degreesPerJog, stopping at the hard stops,
// which matches how far the real mount travels between one-second polls.
type Simulator struct {
	mu   sync.Mutex
	pan  float64
	tilt float64

	// Hard stop positions.
	PanStopMin, PanStopMax   float64
	TiltStopMin, TiltStopMax float64
	// Truncate reproduces the camera's racy truncated-XML bug.
	Truncate bool
}

func NewSimulator() *Simulator {
	return &Simulator{
		PanStopMin:  0,
		PanStopMax:  355,
		TiltStopMin: -90,
		TiltStopMax: 90,
	}
}

// Position returns the simulated axis positions.
func (s *Simulator) Position() (pan, tilt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pan, s.tilt
}

// MoveTo teleports the simulated mount, for test setup.
func (s *Simulator) MoveTo(pan, tilt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pan, s.tilt = pan, tilt
}

func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/CP_Update.xml" {
		http.NotFound(w, r)
		return
	}
	panForce, _ := strconv.Atoi(r.URL.Query().Get("PCmd"))
	tiltForce, _ := strconv.Atoi(r.URL.Query().Get("TCmd"))

	s.mu.Lock()
	s.pan = clampStop(s.pan+float64(clampForce(panForce))*degreesPerJog, s.PanStopMin, s.PanStopMax)
	s.tilt = clampStop(s.tilt+float64(clampForce(tiltForce))*degreesPerJog, s.TiltStopMin, s.TiltStopMax)
	pan, tilt := s.pan, s.tilt
	truncate := s.Truncate
	s.mu.Unlock()

	tail := "</AutoPatrol><CPStatusMsg><Type>Info</Type><Text></Text></CPStatusMsg></CP_Update>"
	if truncate {
		// The status element is cut off mid-tag but the closing
		// CP_Update tag is still present, as with the real camera.
		tail = "</AutoPatrol><CPStatusMsg><Type>Inf\n</CP_Update>"
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>
<CP_Update><PanPos>%.1f</PanPos><TiltPos>%.1f</TiltPos><AutoPatrol>Off%s`, pan, tilt, tail)
}

func clampStop(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
