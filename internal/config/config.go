// Package config loads the bridge configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/interfect/rotator-control/transform"
)

type Config struct {
	// Listen is the rotctld TCP listen address.
	Listen string `yaml:"listen"`
	// AdminListen serves status, websocket, and metrics endpoints.
	AdminListen string `yaml:"admin_listen"`

	Mount    MountConfig    `yaml:"mount"`
	Geometry GeometryConfig `yaml:"geometry"`
	Tracking TrackingConfig `yaml:"tracking"`
}

type MountConfig struct {
	// Endpoint is the base URL of the mount's HTTP interface.
	Endpoint string `yaml:"endpoint"`
	// Simulate runs against a built-in mount simulator instead.
	Simulate bool `yaml:"simulate"`
}

// GeometryConfig is the operator-supplied mount calibration.
type GeometryConfig struct {
	NorthOffset        float64 `yaml:"north_offset"`
	AzimuthDirection   float64 `yaml:"azimuth_direction"`
	ElevationDirection float64 `yaml:"elevation_direction"`
	ElevationOffset    float64 `yaml:"elevation_offset"`
	WraparoundPan      float64 `yaml:"wraparound_pan"`
	PanMin             float64 `yaml:"pan_min"`
	PanMax             float64 `yaml:"pan_max"`
	TiltMin            float64 `yaml:"tilt_min"`
	TiltMax            float64 `yaml:"tilt_max"`
}

type TrackingConfig struct {
	TickIntervalMs  int     `yaml:"tick_interval_ms"`
	DeadbandDegrees float64 `yaml:"deadband_degrees"`
	ParkPan         float64 `yaml:"park_pan"`
	ParkTilt        float64 `yaml:"park_tilt"`
}

// Default matches the JPTH-13M-PoE mount the bridge was built for.
func Default() Config {
	return Config{
		Listen:      "127.0.0.1:4533",
		AdminListen: "127.0.0.1:8502",
		Mount: MountConfig{
			Endpoint: "http://10.1.203.213",
		},
		Geometry: GeometryConfig{
			NorthOffset:        90,
			AzimuthDirection:   1,
			ElevationDirection: -1,
			WraparoundPan:      357.5,
			PanMin:             0,
			PanMax:             355,
			TiltMin:            -90,
			TiltMax:            90,
		},
		Tracking: TrackingConfig{
			TickIntervalMs:  1000,
			DeadbandDegrees: 0.5,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the
// mount geometry. Geometry errors are fatal at startup by design: the
// control loop refuses to guess around contradictory calibration.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.TransformGeometry().Validate(); err != nil {
		return cfg, err
	}
	if cfg.Tracking.TickIntervalMs <= 0 {
		return cfg, fmt.Errorf("tick_interval_ms must be positive, got %d", cfg.Tracking.TickIntervalMs)
	}
	if cfg.Tracking.DeadbandDegrees < 0 {
		return cfg, fmt.Errorf("deadband_degrees must not be negative, got %v", cfg.Tracking.DeadbandDegrees)
	}
	return cfg, nil
}

func (c Config) TransformGeometry() transform.Geometry {
	return transform.Geometry{
		NorthOffset:        c.Geometry.NorthOffset,
		AzimuthDirection:   c.Geometry.AzimuthDirection,
		ElevationDirection: c.Geometry.ElevationDirection,
		ElevationOffset:    c.Geometry.ElevationOffset,
		WraparoundPan:      c.Geometry.WraparoundPan,
		PanMin:             c.Geometry.PanMin,
		PanMax:             c.Geometry.PanMax,
		TiltMin:            c.Geometry.TiltMin,
		TiltMax:            c.Geometry.TiltMax,
	}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Tracking.TickIntervalMs) * time.Millisecond
}
