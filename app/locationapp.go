// Package app provides the central orchestrator for the geo-location application.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
)

// UpdatePublisher defines the interface for a component that fans out location updates.
type UpdatePublisher interface {
	Publish(ctx context.Context, rec locations.Record) error
}

// TrackingStatus describes the tracking controller of one location.
type TrackingStatus struct {
	LocationID uuid.UUID     `json:"location_id"`
	Tracking   bool          `json:"tracking"`
	State      string        `json:"state"`
	Mode       tracking.Mode `json:"mode,omitempty"`
	Continuous bool          `json:"continuous"`
	LastError  string        `json:"last_error,omitempty"`
}

// App is the central application struct. It holds the location registry,
// the position source and one tracking controller per tracked location.
type App struct {
	LocationSvc *locations.Service
	Source      tracking.PositionSource
	Publisher   UpdatePublisher
	Logger      zerolog.Logger

	controllerOpts []tracking.ControllerOption
	publishTimeout time.Duration

	mu       sync.Mutex
	trackers map[uuid.UUID]*tracker

	// updates decouples publishing from the source goroutine that applied
	// the sample. A single worker drains it, so per-location order is kept.
	queueMu       sync.RWMutex
	queueClosed   bool
	updates       chan locations.Record
	publisherDone chan struct{}
	shutdownOnce  sync.Once
}

// updateQueueSize bounds the updates waiting to be published. Updates that
// arrive while the queue is full are dropped and logged.
const updateQueueSize = 256

type tracker struct {
	ctrl *tracking.Controller

	mu      sync.Mutex
	lastErr error
}

func (t *tracker) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErr = err
}

func (t *tracker) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// New creates a new, fully initialized App. source and publisher may be nil.
func New(
	locationSvc *locations.Service,
	source tracking.PositionSource,
	publisher UpdatePublisher,
	logger zerolog.Logger,
	controllerOpts ...tracking.ControllerOption,
) *App {
	a := &App{
		LocationSvc:    locationSvc,
		Source:         source,
		Publisher:      publisher,
		Logger:         logger,
		controllerOpts: controllerOpts,
		publishTimeout: 10 * time.Second,
		trackers:       make(map[uuid.UUID]*tracker),
	}
	if publisher != nil {
		a.updates = make(chan locations.Record, updateQueueSize)
		a.publisherDone = make(chan struct{})
		go a.runPublisher()
		locationSvc.AddListener(a.enqueueUpdate)
	}
	return a
}

func (a *App) enqueueUpdate(_ context.Context, rec locations.Record) {
	a.queueMu.RLock()
	defer a.queueMu.RUnlock()
	if a.queueClosed {
		return
	}
	select {
	case a.updates <- rec:
	default:
		a.Logger.Warn().Stringer("location_id", rec.ID).Msg("Update queue full, dropping location update")
	}
}

func (a *App) runPublisher() {
	defer close(a.publisherDone)
	for rec := range a.updates {
		a.publishUpdate(rec)
	}
}

func (a *App) publishUpdate(rec locations.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), a.publishTimeout)
	defer cancel()
	if err := a.Publisher.Publish(ctx, rec); err != nil {
		a.Logger.Error().Err(err).Stringer("location_id", rec.ID).Msg("Failed to publish location update")
	}
}

// AddLocation registers a fixed location.
func (a *App) AddLocation(ctx context.Context, name string, pos locations.Position) (locations.Record, error) {
	rec, _, err := a.LocationSvc.AddLocation(ctx, name, pos)
	return rec, err
}

// TrackCurrentLocation registers a location that starts at (0,0) and moves
// to the device position once the source produces an accurate fix. The
// record exists before the watch starts, so the first fix is published like
// any other update.
func (a *App) TrackCurrentLocation(ctx context.Context, name string) (locations.Record, error) {
	if a.Source == nil {
		return locations.Record{}, tracking.ErrUnavailable
	}
	rec, _, err := a.LocationSvc.AddLocation(ctx, name, locations.Position{})
	if err != nil {
		return locations.Record{}, err
	}
	t, err := a.trackerFor(rec.ID)
	if err != nil {
		return locations.Record{}, err
	}
	if err := t.ctrl.SetToCurrentOnce(); err != nil {
		return locations.Record{}, err
	}

	a.Logger.Info().Stringer("location_id", rec.ID).Str("name", name).Msg("Waiting for current position")
	return rec, nil
}

// StartTracking starts (or restarts) tracking for a registered location.
func (a *App) StartTracking(ctx context.Context, id uuid.UUID, opts tracking.Options) error {
	t, err := a.trackerFor(id)
	if err != nil {
		return err
	}
	t.setErr(nil)
	return t.ctrl.StartTracking(opts)
}

// StopTracking stops tracking for a location. Locations that never tracked are a no-op.
func (a *App) StopTracking(ctx context.Context, id uuid.UUID) error {
	if _, err := a.LocationSvc.Coordinate(id); err != nil {
		return err
	}
	a.mu.Lock()
	t, ok := a.trackers[id]
	a.mu.Unlock()
	if ok {
		t.ctrl.Stop()
	}
	return nil
}

// Status reports the tracking state of a registered location.
func (a *App) Status(ctx context.Context, id uuid.UUID) (TrackingStatus, error) {
	if _, err := a.LocationSvc.Coordinate(id); err != nil {
		return TrackingStatus{}, err
	}
	status := TrackingStatus{LocationID: id, State: tracking.StateIdle.String()}

	a.mu.Lock()
	t, ok := a.trackers[id]
	a.mu.Unlock()
	if !ok {
		return status, nil
	}

	opts := t.ctrl.Options()
	state := t.ctrl.State()
	status.Tracking = state != tracking.StateIdle
	status.State = state.String()
	status.Mode = opts.Mode
	status.Continuous = opts.Continuous
	if err := t.err(); err != nil {
		status.LastError = err.Error()
	}
	return status, nil
}

// GetLocation returns the stored record for id.
func (a *App) GetLocation(ctx context.Context, id uuid.UUID) (locations.Record, error) {
	return a.LocationSvc.GetLocation(ctx, id)
}

// ListLocations returns every stored record.
func (a *App) ListLocations(ctx context.Context) ([]locations.Record, error) {
	return a.LocationSvc.ListLocations(ctx)
}

// Distance returns the kilometres between two registered locations.
func (a *App) Distance(ctx context.Context, from, to uuid.UUID) (float64, error) {
	return a.LocationSvc.Distance(ctx, from, to)
}

// Shutdown stops every tracking controller, then publishes the updates still
// queued. It is safe to call more than once.
func (a *App) Shutdown() {
	a.mu.Lock()
	for _, t := range a.trackers {
		t.ctrl.Stop()
	}
	a.mu.Unlock()

	a.shutdownOnce.Do(func() {
		if a.updates == nil {
			return
		}
		a.queueMu.Lock()
		a.queueClosed = true
		close(a.updates)
		a.queueMu.Unlock()
		<-a.publisherDone
	})
}

func (a *App) trackerFor(id uuid.UUID) (*tracker, error) {
	coord, err := a.LocationSvc.Coordinate(id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.trackers[id]; ok {
		return t, nil
	}
	t := &tracker{}
	t.ctrl = tracking.NewController(coord, a.Source, a.Logger.With().Stringer("location_id", id).Logger(), a.optionsFor(t)...)
	a.trackers[id] = t
	return t, nil
}

func (a *App) optionsFor(t *tracker) []tracking.ControllerOption {
	opts := make([]tracking.ControllerOption, 0, len(a.controllerOpts)+1)
	opts = append(opts, a.controllerOpts...)
	return append(opts, tracking.WithErrorHandler(func(err error) {
		t.setErr(err)
		var srcErr *tracking.SourceError
		if errors.As(err, &srcErr) && srcErr.Code == tracking.PermissionDenied {
			a.Logger.Warn().Err(err).Msg("Tracking halted by position source")
		}
	}))
}
