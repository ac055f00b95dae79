// FILE: pkg/locations/locationsservice.go

package locations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Listener is called with the refreshed record after a registered coordinate changes.
type Listener func(ctx context.Context, rec Record)

// Service keeps a registry of named, live coordinates and mirrors each one's
// last-known position into a Store.
type Service struct {
	store  Store
	logger zerolog.Logger

	mu        sync.RWMutex
	live      map[uuid.UUID]*registered
	listeners []Listener

	now func() time.Time
}

type registered struct {
	mu     sync.Mutex
	id     uuid.UUID
	name   string
	coord  *Coordinate
	cancel func()
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "locations").Logger(),
		live:   make(map[uuid.UUID]*registered),
		now:    time.Now,
	}
}

// AddListener registers fn to receive every record written after an update.
func (s *Service) AddListener(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// AddLocation creates a coordinate at pos and registers it under name.
func (s *Service) AddLocation(ctx context.Context, name string, pos Position) (Record, *Coordinate, error) {
	coord, err := New(pos.Latitude, pos.Longitude)
	if err != nil {
		return Record{}, nil, err
	}
	rec, err := s.Register(ctx, name, coord)
	if err != nil {
		return Record{}, nil, err
	}
	return rec, coord, nil
}

// Register stores the coordinate's current position and keeps the stored
// record in step with later updates. The coordinate may already be tracking.
func (s *Service) Register(ctx context.Context, name string, coord *Coordinate) (Record, error) {
	if coord == nil {
		return Record{}, &ArgumentError{Msg: "cannot register a nil coordinate"}
	}
	entry := &registered{id: uuid.New(), name: name, coord: coord}

	// Saves for one entry are serialized and always read the coordinate under
	// the entry lock, so the last write carries the latest position.
	entry.mu.Lock()
	entry.cancel = coord.Subscribe(func(Position) {
		s.handleUpdate(entry)
	})
	rec := entry.record(s.now())
	err := s.store.Save(ctx, rec)
	entry.mu.Unlock()

	if err != nil {
		entry.cancel()
		return Record{}, fmt.Errorf("failed to save location %q: %w", name, err)
	}

	s.mu.Lock()
	s.live[rec.ID] = entry
	s.mu.Unlock()

	s.logger.Info().Stringer("location_id", rec.ID).Str("name", name).Stringer("position", rec.Position).Msg("Registered location")
	return rec, nil
}

func (r *registered) record(at time.Time) Record {
	return Record{ID: r.id, Name: r.name, Position: r.coord.Position(), UpdatedAt: at}
}

func (s *Service) handleUpdate(entry *registered) {
	ctx := context.Background()

	entry.mu.Lock()
	rec := entry.record(s.now())
	err := s.store.Save(ctx, rec)
	entry.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Stringer("location_id", rec.ID).Msg("Failed to persist location update")
	}

	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, rec)
	}
}

// Unregister stops mirroring updates for id. The stored record is kept.
func (s *Service) Unregister(id uuid.UUID) {
	s.mu.Lock()
	entry, ok := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()
	if ok && entry.cancel != nil {
		entry.cancel()
	}
}

// Coordinate returns the live coordinate registered under id.
func (s *Service) Coordinate(id uuid.UUID) (*Coordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.live[id]
	if !ok {
		return nil, fmt.Errorf("location with ID %s: %w", id, ErrNotFound)
	}
	return entry.coord, nil
}

// GetLocation fetches a single record by its ID.
func (s *Service) GetLocation(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.store.GetByID(ctx, id)
}

// ListLocations returns every stored record.
func (s *Service) ListLocations(ctx context.Context) ([]Record, error) {
	return s.store.List(ctx)
}

// Distance returns the kilometres between two registered locations. Live
// coordinates are read directly; otherwise the stored position is used.
func (s *Service) Distance(ctx context.Context, from, to uuid.UUID) (float64, error) {
	a, err := s.position(ctx, from)
	if err != nil {
		return 0, err
	}
	b, err := s.position(ctx, to)
	if err != nil {
		return 0, err
	}
	return Haversine(a, b), nil
}

func (s *Service) position(ctx context.Context, id uuid.UUID) (Position, error) {
	if coord, err := s.Coordinate(id); err == nil {
		return coord.Position(), nil
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Position{}, err
	}
	return rec.Position, nil
}

func (s *Service) GetStore() Store {
	return s.store
}
