package tracking

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/geo-location/internal/telemetry"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/rs/zerolog"
)

// Mode selects how a controller obtains samples.
type Mode string

const (
	// ModePassive subscribes to a continuous stream and filters by accuracy.
	ModePassive Mode = "passive"
	// ModeActive requests a single fix every poll interval and applies it as is.
	ModeActive Mode = "active"
)

// State is the controller's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateWatchingPassive
	StatePollingActive
)

func (s State) String() string {
	switch s {
	case StateWatchingPassive:
		return "watching_passive"
	case StatePollingActive:
		return "polling_active"
	default:
		return "idle"
	}
}

// Options configure one tracking session. Start from DefaultOptions: the zero
// value is a one-shot session.
type Options struct {
	Continuous bool `json:"continuous"`
	Mode       Mode `json:"mode"`
}

// DefaultOptions is a continuous passive watch.
func DefaultOptions() Options {
	return Options{Continuous: true, Mode: ModePassive}
}

// ErrorHandler receives every *SourceError raised while tracking. It runs on
// the source's goroutine.
type ErrorHandler func(error)

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

func WithErrorHandler(fn ErrorHandler) ControllerOption {
	return func(c *Controller) { c.onError = fn }
}

func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithAccuracyThreshold(v float64) ControllerOption {
	return func(c *Controller) {
		if v > 0 {
			c.threshold = v
		}
	}
}

// Controller owns at most one subscription or poll timer against a
// PositionSource and writes accepted samples into a Coordinate it does not own.
type Controller struct {
	coord     *locations.Coordinate
	source    PositionSource
	logger    zerolog.Logger
	onError   ErrorHandler
	interval  time.Duration
	threshold float64

	mu      sync.Mutex
	state   State
	options Options
	session uuid.UUID
	watchID *WatchID
	timer   *pollTimer
}

// NewController creates an idle controller for coord. A nil source is
// allowed; StartTracking then fails with ErrUnavailable.
func NewController(coord *locations.Coordinate, source PositionSource, logger zerolog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		coord:     coord,
		source:    source,
		logger:    logger.With().Str("component", "tracking").Logger(),
		interval:  PollInterval,
		threshold: GeoThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartTracking cancels any running session and starts a new one.
func (c *Controller) StartTracking(opts Options) error {
	if c.source == nil {
		return ErrUnavailable
	}
	if opts.Mode == "" {
		opts.Mode = ModePassive
	}
	if opts.Mode != ModePassive && opts.Mode != ModeActive {
		return fmt.Errorf("%w %q", ErrUnknownMode, opts.Mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	session := uuid.New()
	c.session = session
	c.options = opts

	if opts.Mode == ModeActive {
		c.timer = c.startPolling(session)
		c.state = StatePollingActive
	} else {
		id := c.source.WatchPosition(
			func(s Sample) { c.handlePassive(session, s) },
			func(err error) { c.handleError(session, err) },
			WatchOptions{HighAccuracy: true, Timeout: GeoTimeout, MaximumAge: 0},
		)
		c.watchID = &id
		c.state = StateWatchingPassive
	}
	telemetry.ActiveSessions.WithLabelValues(string(opts.Mode)).Inc()

	c.logger.Info().
		Stringer("session_id", session).
		Str("mode", string(opts.Mode)).
		Bool("continuous", opts.Continuous).
		Msg("Tracking started")
	return nil
}

// SetToCurrentOnce applies exactly one accepted passive sample, then stops.
func (c *Controller) SetToCurrentOnce() error {
	return c.StartTracking(Options{Continuous: false, Mode: ModePassive})
}

// Stop cancels the active watch or timer. Calling it while idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.watchID != nil {
		c.source.ClearWatch(*c.watchID)
		c.watchID = nil
	}
	if c.timer != nil {
		c.timer.cancel()
		c.timer = nil
	}
	if c.state != StateIdle {
		telemetry.ActiveSessions.WithLabelValues(string(c.options.Mode)).Dec()
		c.logger.Info().Stringer("session_id", c.session).Msg("Tracking stopped")
	}
	c.state = StateIdle
	c.session = uuid.Nil
}

// IsTracking reports whether a watch or poll timer is live.
func (c *Controller) IsTracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Options returns the options of the current or most recent session.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options
}

// Mode returns the mode of the current or most recent session.
func (c *Controller) Mode() Mode {
	return c.Options().Mode
}

// Continuous reports whether the current or most recent session keeps
// updating after its first accepted sample.
func (c *Controller) Continuous() bool {
	return c.Options().Continuous
}

// Coordinate returns the coordinate this controller writes to.
func (c *Controller) Coordinate() *locations.Coordinate {
	return c.coord
}

func (c *Controller) handlePassive(session uuid.UUID, s Sample) {
	telemetry.SamplesReceived.WithLabelValues(string(ModePassive)).Inc()

	if !(s.Coords.Accuracy < c.threshold) {
		telemetry.SamplesDropped.WithLabelValues("accuracy").Inc()
		c.logger.Debug().Float64("accuracy", s.Coords.Accuracy).Msg("Dropped inaccurate sample")
		return
	}
	pos := locations.Position{Latitude: s.Coords.Latitude, Longitude: s.Coords.Longitude}
	if err := pos.Validate(); err != nil {
		c.reject(err)
		return
	}

	c.mu.Lock()
	if c.session != session || c.state != StateWatchingPassive {
		c.mu.Unlock()
		telemetry.SamplesDropped.WithLabelValues("stale").Inc()
		return
	}
	var finished *WatchID
	if !c.options.Continuous {
		// Idle before applying so a second sample racing this one is stale.
		finished = c.watchID
		c.watchID = nil
		c.stopLocked()
	}
	c.mu.Unlock()

	c.apply(pos, ModePassive)
	if finished != nil {
		c.source.ClearWatch(*finished)
	}
}

// handleActive applies every sample, including one requested by a session
// that has since been replaced.
func (c *Controller) handleActive(session uuid.UUID, s Sample) {
	telemetry.SamplesReceived.WithLabelValues(string(ModeActive)).Inc()

	pos := locations.Position{Latitude: s.Coords.Latitude, Longitude: s.Coords.Longitude}
	if err := pos.Validate(); err != nil {
		c.reject(err)
		return
	}

	c.mu.Lock()
	if c.session == session && c.state == StatePollingActive && !c.options.Continuous {
		c.stopLocked()
	}
	c.mu.Unlock()

	c.apply(pos, ModeActive)
}

func (c *Controller) apply(pos locations.Position, mode Mode) {
	if err := c.coord.SetPosition(pos); err != nil {
		c.reject(err)
		return
	}
	telemetry.SamplesApplied.WithLabelValues(string(mode)).Inc()
	c.logger.Debug().Stringer("position", pos).Str("mode", string(mode)).Msg("Applied sample")
}

func (c *Controller) reject(err error) {
	telemetry.SamplesDropped.WithLabelValues("invalid").Inc()
	c.logger.Warn().Err(err).Msg("Source delivered an invalid position")
}

func (c *Controller) handleError(session uuid.UUID, err error) {
	srcErr := newSourceError(err)
	telemetry.SourceErrors.WithLabelValues(strconv.Itoa(int(srcErr.Code))).Inc()
	c.logger.Warn().Err(srcErr).Stringer("session_id", session).Int("code", int(srcErr.Code)).Msg("Position source error")

	c.mu.Lock()
	current := c.session == session && c.state != StateIdle
	if current && srcErr.Code == PermissionDenied {
		c.stopLocked()
	}
	c.mu.Unlock()

	// Errors from a replaced or cleared session are not reported.
	if !current {
		telemetry.SamplesDropped.WithLabelValues("stale_error").Inc()
		return
	}
	if c.onError != nil {
		c.onError(srcErr)
	}
}

type pollTimer struct {
	stop chan struct{}
	once sync.Once
}

func (t *pollTimer) cancel() {
	t.once.Do(func() { close(t.stop) })
}

func (c *Controller) startPolling(session uuid.UUID) *pollTimer {
	t := &pollTimer{stop: make(chan struct{})}
	ticker := time.NewTicker(c.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				select {
				case <-t.stop:
					return
				default:
				}
				c.source.GetCurrentPosition(
					func(s Sample) { c.handleActive(session, s) },
					func(err error) { c.handleError(session, err) },
				)
			}
		}
	}()
	return t
}

// NewTrackingAtCurrentLocation creates a coordinate at (0,0) and asks the
// source for one accepted fix. The coordinate is updated asynchronously.
func NewTrackingAtCurrentLocation(source PositionSource, logger zerolog.Logger, opts ...ControllerOption) (*locations.Coordinate, *Controller, error) {
	coord, err := locations.New(0, 0)
	if err != nil {
		return nil, nil, err
	}
	ctrl := NewController(coord, source, logger, opts...)
	if err := ctrl.SetToCurrentOnce(); err != nil {
		return nil, nil, err
	}
	return coord, ctrl, nil
}
