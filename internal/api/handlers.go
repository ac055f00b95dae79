package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Handler serves the location endpoints.
type Handler struct {
	App    LocationApp
	Logger zerolog.Logger
}

type addLocationRequest struct {
	Name     string              `json:"name"`
	Position *locations.Position `json:"position"`
}

type trackCurrentRequest struct {
	Name string `json:"name"`
}

type trackingRequest struct {
	Mode       tracking.Mode `json:"mode"`
	Continuous bool          `json:"continuous"`
}

type distanceResponse struct {
	From       uuid.UUID `json:"from"`
	To         uuid.UUID `json:"to"`
	Kilometres float64   `json:"kilometres"`
}

// Health provides a minimal liveness check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	all, err := h.App.ListLocations(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if all == nil {
		all = []locations.Record{}
	}
	h.writeJSON(w, r, http.StatusOK, all)
}

func (h *Handler) AddLocation(w http.ResponseWriter, r *http.Request) {
	var req addLocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if req.Position == nil {
		h.writeError(w, r, http.StatusBadRequest, "position is required")
		return
	}

	rec, err := h.App.AddLocation(r.Context(), name, *req.Position)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, rec)
}

// TrackCurrentLocation registers a location that follows the device position.
// The first fix arrives asynchronously, so the response is 202.
func (h *Handler) TrackCurrentLocation(w http.ResponseWriter, r *http.Request) {
	var req trackCurrentRequest
	if !h.decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	rec, err := h.App.TrackCurrentLocation(r.Context(), name)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, rec)
}

func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.App.GetLocation(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, rec)
}

func (h *Handler) Distance(w http.ResponseWriter, r *http.Request) {
	from, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	to, ok := h.pathID(w, r, "other")
	if !ok {
		return
	}
	d, err := h.App.Distance(r.Context(), from, to)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, distanceResponse{From: from, To: to, Kilometres: d})
}

func (h *Handler) TrackingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	status, err := h.App.Status(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, status)
}

// StartTracking (re)starts tracking. Omitted fields take the controller defaults.
func (h *Handler) StartTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	defaults := tracking.DefaultOptions()
	req := trackingRequest{Mode: defaults.Mode, Continuous: defaults.Continuous}
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	if err := h.App.StartTracking(r.Context(), id, tracking.Options{Continuous: req.Continuous, Mode: req.Mode}); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	status, err := h.App.Status(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, status)
}

func (h *Handler) StopTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.App.StopTracking(r.Context(), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid location id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var verr *locations.ValidationError
		if errors.As(err, &verr) {
			h.writeError(w, r, http.StatusBadRequest, verr.Error())
			return false
		}
		h.writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		h.writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *locations.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, r, http.StatusBadRequest, verr.Error())
	case errors.Is(err, tracking.ErrUnknownMode):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, locations.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "location not found")
	case errors.Is(err, tracking.ErrUnavailable):
		h.writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		h.Logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Warn().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Encode failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, map[string]string{"error": msg})
}
