package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
)

// ReplayEntry is one recorded reading: either coordinates or an error code.
type ReplayEntry struct {
	Coords *tracking.Coords   `json:"coords,omitempty"`
	Error  tracking.ErrorCode `json:"error,omitempty"`
}

// ReplaySource plays back recorded entries in order, one per interval on
// watches and one per GetCurrentPosition call. When Loop is false the source
// reports PositionUnavailable once the recording is exhausted.
type ReplaySource struct {
	entries  []ReplayEntry
	interval time.Duration
	logger   zerolog.Logger
	Loop     bool

	mu      sync.Mutex
	next    int
	nextID  tracking.WatchID
	watches map[tracking.WatchID]chan struct{}
}

// DefaultReplayInterval is used when a non-positive interval is given.
const DefaultReplayInterval = time.Second

// NewReplaySource creates a source over entries.
func NewReplaySource(entries []ReplayEntry, interval time.Duration, logger zerolog.Logger) *ReplaySource {
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	return &ReplaySource{
		entries:  entries,
		interval: interval,
		logger:   logger.With().Str("source", "replay").Logger(),
		watches:  make(map[tracking.WatchID]chan struct{}),
	}
}

// LoadReplayFile reads a JSON array of ReplayEntry values from path.
func LoadReplayFile(path string, interval time.Duration, logger zerolog.Logger) (*ReplaySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	var entries []ReplayEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse replay file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("replay file %s contains no entries", path)
	}
	return NewReplaySource(entries, interval, logger), nil
}

// take returns the next entry, or false when the recording is exhausted.
func (r *ReplaySource) take() (ReplayEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.entries) {
		if !r.Loop || len(r.entries) == 0 {
			return ReplayEntry{}, false
		}
		r.next = 0
	}
	e := r.entries[r.next]
	r.next++
	return e, true
}

// deliver hands the next entry to a callback and reports whether the
// recording still had one.
func (r *ReplaySource) deliver(onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc) bool {
	e, ok := r.take()
	switch {
	case !ok:
		onError(&tracking.PositionError{Code: tracking.PositionUnavailable, Message: "replay exhausted"})
	case e.Coords == nil:
		code := e.Error
		if code == 0 {
			code = tracking.PositionUnavailable
		}
		onError(&tracking.PositionError{Code: code})
	default:
		onSuccess(tracking.Sample{Coords: *e.Coords, Timestamp: time.Now()})
	}
	return ok
}

func (r *ReplaySource) GetCurrentPosition(onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc) {
	go r.deliver(onSuccess, onError)
}

// WatchPosition plays one entry per interval until the watch is cleared or
// the recording runs out.
func (r *ReplaySource) WatchPosition(onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc, opts tracking.WatchOptions) tracking.WatchID {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	stop := make(chan struct{})
	r.watches[id] = stop
	r.mu.Unlock()

	r.logger.Debug().Int64("watch_id", int64(id)).Dur("interval", r.interval).Msg("Replay watch started")

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !r.deliver(onSuccess, onError) {
					return
				}
			}
		}
	}()
	return id
}

func (r *ReplaySource) ClearWatch(id tracking.WatchID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.watches[id]; ok {
		close(stop)
		delete(r.watches, id)
	}
}
