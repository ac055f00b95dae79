// Package api exposes the location registry and its tracking controllers over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/illmade-knight/geo-location/app"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
)

// LocationApp is the subset of the application the HTTP layer drives.
type LocationApp interface {
	AddLocation(ctx context.Context, name string, pos locations.Position) (locations.Record, error)
	TrackCurrentLocation(ctx context.Context, name string) (locations.Record, error)
	StartTracking(ctx context.Context, id uuid.UUID, opts tracking.Options) error
	StopTracking(ctx context.Context, id uuid.UUID) error
	Status(ctx context.Context, id uuid.UUID) (app.TrackingStatus, error)
	GetLocation(ctx context.Context, id uuid.UUID) (locations.Record, error)
	ListLocations(ctx context.Context) ([]locations.Record, error)
	Distance(ctx context.Context, from, to uuid.UUID) (float64, error)
}

// NewRouter wires the location handlers and returns an http.Handler.
func NewRouter(application LocationApp, logger zerolog.Logger) http.Handler {
	h := &Handler{App: application, Logger: logger.With().Str("component", "api").Logger()}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/locations", h.ListLocations).Methods(http.MethodGet)
	r.HandleFunc("/locations", h.AddLocation).Methods(http.MethodPost)
	r.HandleFunc("/locations/current", h.TrackCurrentLocation).Methods(http.MethodPost)
	r.HandleFunc("/locations/{id}", h.GetLocation).Methods(http.MethodGet)
	r.HandleFunc("/locations/{id}/distance/{other}", h.Distance).Methods(http.MethodGet)

	r.HandleFunc("/locations/{id}/tracking", h.TrackingStatus).Methods(http.MethodGet)
	r.HandleFunc("/locations/{id}/tracking", h.StartTracking).Methods(http.MethodPut)
	r.HandleFunc("/locations/{id}/tracking", h.StopTracking).Methods(http.MethodDelete)

	return loggingMiddleware(h.Logger, r)
}
