// Package track runs the control loop that drives a pan/tilt mount
// toward a moving azimuth/elevation target.
package track

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/interfect/rotator-control/rotator"
	"github.com/interfect/rotator-control/transform"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotator_ticks_total",
		Help: "Control loop ticks run.",
	})
	commandsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotator_mount_commands_total",
		Help: "Position commands sent to the mount.",
	})
	driverErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotator_driver_errors_total",
		Help: "Mount transport failures.",
	})
	azimuthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rotator_azimuth_degrees",
		Help: "Last polled azimuth.",
	})
	elevationGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rotator_elevation_degrees",
		Help: "Last polled elevation.",
	})
)

// Config tunes the control loop. The tick interval trades command
// traffic against tracking lag; neither value affects correctness.
type Config struct {
	// Interval between control ticks.
	Interval time.Duration
	// Deadband is the minimum change in degrees before a new command
	// is sent to the mount.
	Deadband float64
	// ParkPan and ParkTilt are the mount angles for the park command.
	ParkPan, ParkTilt float64
}

// Session owns one client's target and drives the mount toward it. At
// most one Session is active at a time; Manager enforces that.
//
// The control is open loop: each tick commands the mount toward the
// current target and separately polls where the mount actually is, so
// tracking lags a moving target by up to the mount's slew time per
// tick. panDelta below is where a feedback term would go.
type Session struct {
	geom   transform.Geometry
	mount  rotator.Mount
	config Config

	cancel context.CancelFunc
	done   chan struct{}

	// targetMu guards only the target so that SetTarget never waits on
	// mount I/O.
	targetMu sync.Mutex
	tracking bool
	targetAz float64
	targetEl float64

	// Commanded and polled state, touched only by the tick goroutine.
	cmdValid bool
	cmdPan   float64
	cmdTilt  float64
	posValid bool
	posPan   float64
	posTilt  float64
	limited  bool

	statusMu sync.RWMutex
	status   rotator.Status

	statusCallback rotator.StatusCallback
}

// SetTarget replaces the session's target. It always succeeds; targets
// outside the mount's travel are clamped at command time and reported
// via the position status.
func (s *Session) SetTarget(az, el float64) {
	s.targetMu.Lock()
	s.tracking = true
	s.targetAz = transform.Normalize(az)
	s.targetEl = el
	s.targetMu.Unlock()
}

// Stop clears the target. No further commands are sent to the mount
// until a new target arrives; position polling continues.
func (s *Session) Stop() {
	s.targetMu.Lock()
	s.tracking = false
	s.targetMu.Unlock()
}

// Park sends the mount to its configured park position.
func (s *Session) Park() {
	az, el := s.geom.PanTiltToAzEl(s.config.ParkPan, s.config.ParkTilt)
	s.SetTarget(az, el)
}

// CurrentPosition returns the most recently polled position, mapped to
// azimuth/elevation, along with its status.
func (s *Session) CurrentPosition() (az, el float64, code rotator.StatusCode) {
	status := s.Status()
	return status.AzPos, status.ElPos, status.Code
}

// Status returns a copy of the full session status. Until the first
// poll lands there is no measured position, so the status reports the
// driver unavailable rather than a confident zero.
func (s *Session) Status() rotator.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	status := s.status
	if status.Updated.IsZero() {
		status.Code = rotator.DriverUnavailable
	}
	return status
}

// Close stops the control loop and waits for the in-progress tick, if
// any, to finish. No mount commands are attributable to the session
// after Close returns.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	t := time.NewTicker(s.config.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// A tick that outlasts the interval causes the ticker to
			// drop ticks rather than queue them.
			s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	ticksTotal.Inc()
	s.targetMu.Lock()
	tracking, az, el := s.tracking, s.targetAz, s.targetEl
	s.targetMu.Unlock()

	if tracking {
		s.command(ctx, az, el)
	}
	s.poll(ctx, tracking, az, el)
}

// command drives the mount toward the target, routing pan motion away
// from the wraparound point and suppressing commands inside the
// deadband.
func (s *Session) command(ctx context.Context, az, el float64) {
	pan, tilt, limited := s.geom.AzElToPanTilt(az, el)
	s.limited = limited

	if !s.cmdValid {
		// No commanded state yet; seed it from the mount itself.
		p, t, err := s.mount.Position(ctx)
		if err != nil {
			driverErrorsTotal.Inc()
			log.Printf("seeding commanded position: %v", err)
			return
		}
		s.cmdPan, s.cmdTilt = p, t
		s.posPan, s.posTilt = p, t
		s.posValid = true
		s.cmdValid = true
	}

	delta, err := s.geom.PanDelta(s.cmdPan, pan)
	if err != nil {
		// Degenerate geometry should have been rejected at startup.
		log.Printf("refusing to command mount: %v", err)
		return
	}
	// Seam for a future feedback term: a proportional correction
	// against observed lag would adjust delta here.
	if math.Abs(delta) <= s.config.Deadband && math.Abs(tilt-s.cmdTilt) <= s.config.Deadband && s.settled(pan, tilt) {
		// Target unchanged and the mount has arrived; sending more
		// commands would just spam the mount.
		return
	}
	if err := s.mount.SetTarget(ctx, pan, tilt); err != nil {
		driverErrorsTotal.Inc()
		log.Printf("commanding mount: %v", err)
		return
	}
	commandsTotal.Inc()
	s.cmdPan, s.cmdTilt = pan, tilt
}

// settled reports whether the mount's last polled position is within
// the deadband of the desired pan and tilt. The mount slews a bounded
// amount per command, so the loop must keep commanding an unchanged
// target until the mount actually arrives, not just until the target
// has been sent once.
func (s *Session) settled(pan, tilt float64) bool {
	if !s.posValid {
		return false
	}
	delta, err := s.geom.PanDelta(s.posPan, pan)
	if err != nil {
		return false
	}
	return math.Abs(delta) <= s.config.Deadband && math.Abs(tilt-s.posTilt) <= s.config.Deadband
}

// poll reads the mount position and publishes it for position queries.
// It runs every tick regardless of whether a command was sent.
func (s *Session) poll(ctx context.Context, tracking bool, az, el float64) {
	pan, tilt, err := s.mount.Position(ctx)
	if err == nil {
		s.posPan, s.posTilt = pan, tilt
		s.posValid = true
	}

	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	status := s.status
	status.Tracking = tracking
	status.TargetAz, status.TargetEl = az, el
	if err != nil {
		driverErrorsTotal.Inc()
		log.Printf("polling mount: %v", err)
		// Keep the stale position; just mark it unavailable.
		status.Code = rotator.DriverUnavailable
	} else {
		status.Pan, status.Tilt = pan, tilt
		status.AzPos, status.ElPos = s.geom.PanTiltToAzEl(pan, tilt)
		status.Updated = time.Now()
		status.Code = rotator.Nominal
		if tracking && s.limited {
			status.Code = rotator.LimitReached
		}
		azimuthGauge.Set(status.AzPos)
		elevationGauge.Set(status.ElPos)
	}
	s.status = status
	if s.statusCallback != nil {
		s.statusCallback(status)
	}
}

// Manager enforces the single-session invariant: the physical mount has
// one target, so starting a session preempts and fully stops any prior
// one.
type Manager struct {
	geom           transform.Geometry
	mount          rotator.Mount
	config         Config
	statusCallback rotator.StatusCallback

	mu     sync.Mutex
	active *Session
}

func NewManager(geom transform.Geometry, mount rotator.Mount, config Config, statusCallback rotator.StatusCallback) (*Manager, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &Manager{
		geom:           geom,
		mount:          mount,
		config:         config,
		statusCallback: statusCallback,
	}, nil
}

// Start creates the active session, tearing down any existing one
// first. The old session's tick loop is fully stopped before the new
// session starts.
func (m *Manager) Start(ctx context.Context) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.active.Close()
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		geom:           m.geom,
		mount:          m.mount,
		config:         m.config,
		cancel:         cancel,
		done:           make(chan struct{}),
		statusCallback: m.statusCallback,
	}
	go s.run(sctx)
	m.active = s
	return s
}

// Active returns the current session, or nil if none has started.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Release tears down the given session if it is still the active one.
func (m *Manager) Release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		s.Close()
		m.active = nil
	}
}
