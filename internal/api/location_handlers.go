package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/device"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/location"
)

// handleLatestLocation returns the most recent fix for a device.
func (s *Server) handleLatestLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}

	record, err := s.locations.Latest(r.Context(), id)
	if err != nil {
		if errors.Is(err, location.ErrNoLocations) {
			writeNotFound(w, "no locations recorded for device")
			return
		}
		writeInternalError(w, "failed to load location")
		return
	}

	writeSuccess(w, http.StatusOK, record)
}

// handleLocationHistory returns recent fixes for a device, newest first.
//
// Query parameters:
//   - limit: maximum number of fixes to return (default 100, capped at 1000)
func (s *Server) handleLocationHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.locations.History(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to load location history")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"device_id": id,
		"locations": records,
		"count":     len(records),
	})
}

// handleRequestLocation asks a tracker for an immediate one-shot fix.
func (s *Server) handleRequestLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}
	if s.commands == nil {
		writeUnavailable(w, "command bus not available")
		return
	}

	if err := s.commands.GetCurrentLocation(id); err != nil {
		s.logger.Warn("location request failed", "device_id", id, "error", err)
		writeUnavailable(w, "failed to dispatch location request")
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{"device_id": id, "command": "get_location"})
}

// trackingRequest is the request body for POST /devices/{id}/tracking/start.
type trackingRequest struct {
	Interval int `json:"interval"`
}

// handleStartTracking commands periodic GPS reporting and records the
// intent in the registry.
func (s *Server) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req := trackingRequest{Interval: s.registry.Defaults().TrackingInterval}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	if err := device.ValidateTrackingInterval(req.Interval); err != nil {
		writeBadRequest(w, "interval must be between 5 and 3600 seconds")
		return
	}

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}
	if s.commands == nil {
		writeUnavailable(w, "command bus not available")
		return
	}

	if err := s.commands.StartTracking(id, req.Interval); err != nil {
		s.logger.Warn("start tracking failed", "device_id", id, "error", err)
		writeUnavailable(w, "failed to dispatch tracking command")
		return
	}

	if err := s.registry.SetTracking(r.Context(), id, true, req.Interval); err != nil {
		s.logger.Warn("recording tracking state failed", "device_id", id, "error", err)
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"tracking":  true,
		"interval":  req.Interval,
	})
}

// handleStopTracking commands the tracker to stop periodic reporting.
func (s *Server) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}
	if s.commands == nil {
		writeUnavailable(w, "command bus not available")
		return
	}

	if err := s.commands.StopTracking(id); err != nil {
		s.logger.Warn("stop tracking failed", "device_id", id, "error", err)
		writeUnavailable(w, "failed to dispatch tracking command")
		return
	}

	if err := s.registry.SetTracking(r.Context(), id, false, 0); err != nil {
		s.logger.Warn("recording tracking state failed", "device_id", id, "error", err)
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{"device_id": id, "tracking": false})
}
