package transform

import (
	"errors"
	"math"
	"testing"
)

// testGeometry is the calibration used throughout: north offset 30, pan
// travel [0, 350] with the sensor wraparound at 355.
func testGeometry() Geometry {
	return Geometry{
		NorthOffset:        30,
		AzimuthDirection:   1,
		ElevationDirection: 1,
		WraparoundPan:      355,
		PanMin:             0,
		PanMax:             350,
		TiltMin:            -30,
		TiltMax:            90,
	}
}

func TestNormalize(t *testing.T) {
	for _, test := range []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{361, 1},
		{-1, 359},
		{-360, 0},
		{725, 5},
		{-725, 355},
	} {
		if got := Normalize(test.in); got != test.want {
			t.Errorf("Normalize(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestShortestDelta(t *testing.T) {
	for _, test := range []struct {
		from, to, want float64
	}{
		{0, 0, 0},
		{0, 10, 10},
		{10, 0, -10},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, 180},
		{180, 0, 180}, // result is in (-180, 180], so 180 not -180
		{90, 280, -170},
	} {
		if got := ShortestDelta(test.from, test.to); got != test.want {
			t.Errorf("ShortestDelta(%v, %v) = %v, want %v", test.from, test.to, got, test.want)
		}
	}
}

func TestAllowedDirectionDelta(t *testing.T) {
	for _, test := range []struct {
		from, to, forbidden, want float64
	}{
		// Shortest path does not cross the forbidden point.
		{10, 50, 355, 40},
		{50, 10, 355, -40},
		// Shortest path (350 -> 0 is +10 through 355) is blocked;
		// route the long way around.
		{350, 0, 355, -350},
		{0, 350, 355, 350},
		// Forbidden point just off the short arc.
		{340, 350, 355, 10},
	} {
		got, err := AllowedDirectionDelta(test.from, test.to, test.forbidden)
		if err != nil {
			t.Errorf("AllowedDirectionDelta(%v, %v, %v) failed: %v", test.from, test.to, test.forbidden, err)
			continue
		}
		if got != test.want {
			t.Errorf("AllowedDirectionDelta(%v, %v, %v) = %v, want %v", test.from, test.to, test.forbidden, got, test.want)
		}
	}
}

func TestAllowedDirectionDeltaBothBlocked(t *testing.T) {
	// Forbidden points on both arcs between 10 and 20 leave no legal
	// path at all.
	_, err := AllowedDirectionDelta(10, 20, 15, 200)
	var cfgErr ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("AllowedDirectionDelta with both arcs blocked: got %v, want ConfigurationError", err)
	}
}

func TestPanDeltaAvoidsWraparound(t *testing.T) {
	g := testGeometry()
	// Every in-travel from/to pair must yield a path that never sweeps
	// the wraparound point.
	for from := 0.0; from <= 350; from += 7 {
		for to := 0.0; to <= 350; to += 11 {
			d, err := g.PanDelta(from, to)
			if err != nil {
				t.Fatalf("PanDelta(%v, %v) failed: %v", from, to, err)
			}
			if arcContains(from, d, g.WraparoundPan) {
				t.Errorf("PanDelta(%v, %v) = %v sweeps wraparound %v", from, to, d, g.WraparoundPan)
			}
			if Normalize(from+d) != Normalize(to) {
				t.Errorf("PanDelta(%v, %v) = %v does not arrive at target", from, to, d)
			}
		}
	}
}

func TestPanDeltaDegenerateGeometry(t *testing.T) {
	// A wraparound point inside the pan travel range is contradictory:
	// some moves are blocked in both directions. Validate rejects it,
	// and PanDelta flags it rather than guessing a path.
	g := testGeometry()
	g.WraparoundPan = 100
	if err := g.Validate(); err == nil {
		t.Error("Validate accepted wraparound inside pan limits")
	}
	_, err := g.PanDelta(50, 150)
	var cfgErr ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("PanDelta with degenerate geometry: got %v, want ConfigurationError", err)
	}
}

func TestValidate(t *testing.T) {
	if err := testGeometry().Validate(); err != nil {
		t.Errorf("valid geometry rejected: %v", err)
	}
	for name, mutate := range map[string]func(*Geometry){
		"wraparound inside limits": func(g *Geometry) { g.WraparoundPan = 123 },
		"empty pan range":          func(g *Geometry) { g.PanMin, g.PanMax = 10, 10 },
		"empty tilt range":         func(g *Geometry) { g.TiltMin, g.TiltMax = 5, -5 },
		"bad azimuth direction":    func(g *Geometry) { g.AzimuthDirection = 0 },
		"bad elevation direction":  func(g *Geometry) { g.ElevationDirection = 2 },
	} {
		g := testGeometry()
		mutate(&g)
		err := g.Validate()
		var cfgErr ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: got %v, want ConfigurationError", name, err)
		}
	}
}

func TestAzElToPanTiltScenario(t *testing.T) {
	g := testGeometry()
	pan, tilt, limited := g.AzElToPanTilt(0, 10)
	if pan != 30 || tilt != 10 {
		t.Errorf("AzElToPanTilt(0, 10) = (%v, %v), want (30, 10)", pan, tilt)
	}
	if limited {
		t.Error("AzElToPanTilt(0, 10) reported a limit for an in-range target")
	}

	az, el := g.PanTiltToAzEl(28, 9)
	if az != 358 || el != 9 {
		t.Errorf("PanTiltToAzEl(28, 9) = (%v, %v), want (358, 9)", az, el)
	}
}

func TestAzElToPanTiltReversedAxes(t *testing.T) {
	// An upside-down camera mount: tilt decreases as elevation
	// increases, and tilt 0 is 5 degrees above the horizon.
	g := testGeometry()
	g.ElevationDirection = -1
	g.ElevationOffset = 5

	_, tilt, limited := g.AzElToPanTilt(0, 20)
	if tilt != -15 {
		t.Errorf("tilt = %v, want -15", tilt)
	}
	if limited {
		t.Error("unexpected limit flag")
	}
	if _, el := g.PanTiltToAzEl(30, -15); el != 20 {
		t.Errorf("el = %v, want 20", el)
	}
}

func TestTiltClamping(t *testing.T) {
	g := testGeometry()
	// Below the horizon floor.
	_, tilt, limited := g.AzElToPanTilt(10, -60)
	if tilt != g.TiltMin || !limited {
		t.Errorf("AzElToPanTilt(10, -60) = tilt %v limited %v, want %v true", tilt, limited, g.TiltMin)
	}
	// Above the zenith ceiling.
	_, tilt, limited = g.AzElToPanTilt(10, 95)
	if tilt != g.TiltMax || !limited {
		t.Errorf("AzElToPanTilt(10, 95) = tilt %v limited %v, want %v true", tilt, limited, g.TiltMax)
	}
}

func TestPanClamping(t *testing.T) {
	g := testGeometry()
	// Azimuth 324 maps to pan 354, in the dead zone near the 350 stop.
	pan, _, limited := g.AzElToPanTilt(324, 10)
	if pan != g.PanMax || !limited {
		t.Errorf("AzElToPanTilt(324, 10) = pan %v limited %v, want %v true", pan, limited, g.PanMax)
	}
	// Azimuth 329 maps to pan 359, nearer the 0 stop.
	pan, _, limited = g.AzElToPanTilt(329, 10)
	if pan != g.PanMin || !limited {
		t.Errorf("AzElToPanTilt(329, 10) = pan %v limited %v, want %v true", pan, limited, g.PanMin)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, g := range []Geometry{
		testGeometry(),
		{
			NorthOffset:        90,
			AzimuthDirection:   -1,
			ElevationDirection: -1,
			ElevationOffset:    2.5,
			WraparoundPan:      357.5,
			PanMin:             0,
			PanMax:             355,
			TiltMin:            -90,
			TiltMax:            90,
		},
	} {
		for az := 0.0; az < 360; az += 12.5 {
			for el := -20.0; el <= 60; el += 10 {
				pan, tilt, limited := g.AzElToPanTilt(az, el)
				if limited {
					// Clamped targets are deliberately lossy.
					continue
				}
				gotAz, gotEl := g.PanTiltToAzEl(pan, tilt)
				if math.Abs(ShortestDelta(gotAz, az)) > 1e-9 || math.Abs(gotEl-el) > 1e-9 {
					t.Errorf("round trip (%v, %v) -> (%v, %v) -> (%v, %v)", az, el, pan, tilt, gotAz, gotEl)
				}
			}
		}
	}
}
