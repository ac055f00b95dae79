// Package sources provides PositionSource implementations that do not need a
// device: a fixed position and a recorded sequence of samples.
package sources

import (
	"sync"
	"time"

	"github.com/illmade-knight/geo-location/pkg/tracking"
)

// StaticSource implements tracking.PositionSource with a fixed location.
// A watch delivers one sample and then stays silent until cleared.
type StaticSource struct {
	Lat      float64
	Lng      float64
	Accuracy float64

	mu      sync.Mutex
	nextID  tracking.WatchID
	cleared map[tracking.WatchID]bool
}

// NewStaticSource creates a source that always reports the same location.
func NewStaticSource(lat, lng, accuracy float64) *StaticSource {
	return &StaticSource{
		Lat:      lat,
		Lng:      lng,
		Accuracy: accuracy,
		cleared:  make(map[tracking.WatchID]bool),
	}
}

func (s *StaticSource) sample() tracking.Sample {
	return tracking.Sample{
		Coords:    tracking.Coords{Latitude: s.Lat, Longitude: s.Lng, Accuracy: s.Accuracy},
		Timestamp: time.Now(),
	}
}

// GetCurrentPosition returns the fixed location.
func (s *StaticSource) GetCurrentPosition(onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc) {
	go onSuccess(s.sample())
}

// WatchPosition delivers the fixed location once.
func (s *StaticSource) WatchPosition(onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc, opts tracking.WatchOptions) tracking.WatchID {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	go func() {
		s.mu.Lock()
		done := s.cleared[id]
		s.mu.Unlock()
		if !done {
			onSuccess(s.sample())
		}
	}()
	return id
}

func (s *StaticSource) ClearWatch(id tracking.WatchID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleared == nil {
		s.cleared = make(map[tracking.WatchID]bool)
	}
	s.cleared[id] = true
}
