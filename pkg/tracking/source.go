// Package tracking keeps a locations.Coordinate in step with an external
// position source, either by watching a continuous stream of samples or by
// polling for single fixes on a fixed interval.
package tracking

import (
	"time"
)

const (
	// GeoTimeout is the longest a source may take to answer a position request.
	GeoTimeout = 120000 * time.Millisecond
	// GeoThreshold is the accuracy a passive sample must beat to be applied.
	GeoThreshold = 25.0
	// PollInterval is the active-mode tick period.
	PollInterval = GeoTimeout + 1000*time.Millisecond
)

// Coords is the position part of a sample. Accuracy is the source's own
// confidence radius; lower is better.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Sample is a single successful reading from a PositionSource.
type Sample struct {
	Coords    Coords    `json:"coords"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// WatchOptions tune a continuous subscription.
type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// WatchID identifies a live subscription returned by WatchPosition.
type WatchID int64

type SuccessFunc func(Sample)

// ErrorFunc receives source failures, normally as *PositionError.
type ErrorFunc func(error)

// PositionSource is a device or service able to report the current position.
//
// Implementations must invoke callbacks asynchronously: never before the
// call that registered them has returned, and never from inside ClearWatch.
type PositionSource interface {
	// GetCurrentPosition requests a single reading.
	GetCurrentPosition(onSuccess SuccessFunc, onError ErrorFunc)
	// WatchPosition starts a continuous stream of readings.
	WatchPosition(onSuccess SuccessFunc, onError ErrorFunc, opts WatchOptions) WatchID
	// ClearWatch cancels a stream. Unknown IDs are ignored.
	ClearWatch(id WatchID)
}
