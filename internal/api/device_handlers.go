package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/device"
)

// handleListDevices returns all devices, optionally filtered by status.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := device.Status(statusStr)
		if !status.IsValid() {
			writeBadRequest(w, "unknown status filter")
			return
		}
		devices, err := s.registry.GetDevicesByStatus(ctx, status)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeSuccess(w, http.StatusOK, dev)
}

// createDeviceRequest is the request body for POST /devices.
type createDeviceRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleCreateDevice registers a tracker ahead of its first bus contact.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeBadRequest(w, "device id is required")
		return
	}

	dev := &device.Device{ID: req.ID, Name: req.Name}
	if err := s.registry.CreateDevice(r.Context(), dev); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case errors.Is(err, device.ErrInvalidDeviceID):
			writeBadRequest(w, "invalid device id")
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeSuccess(w, http.StatusCreated, dev)
}

// updateDeviceRequest is the request body for PATCH /devices/{id}.
// Only the human-facing name is writable over the API; operational fields
// belong to the trackers themselves.
type updateDeviceRequest struct {
	Name *string `json:"name"`
}

// handleUpdateDevice renames a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == nil {
		writeBadRequest(w, "nothing to update")
		return
	}

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}

	if err := s.registry.UpsertDevice(r.Context(), id, device.Patch{Name: req.Name}); err != nil {
		writeInternalError(w, "failed to update device")
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to load device")
		return
	}
	writeSuccess(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device from the registry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleDeviceStats returns aggregate registry counts.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, s.registry.GetStats())
}

// handleRestartDevice sends a restart command to a tracker.
func (s *Server) handleRestartDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}
	if s.commands == nil {
		writeUnavailable(w, "command bus not available")
		return
	}

	if err := s.commands.Restart(id); err != nil {
		s.logger.Warn("restart command failed", "device_id", id, "error", err)
		writeUnavailable(w, "failed to dispatch restart")
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{"device_id": id, "command": "restart"})
}

// firmwareRequest is the request body for POST /devices/{id}/firmware.
type firmwareRequest struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// handleUpdateFirmware announces a firmware image to a tracker.
func (s *Server) handleUpdateFirmware(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req firmwareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Version == "" || req.URL == "" {
		writeBadRequest(w, "version and url are required")
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

	if err := s.commands.UpdateFirmware(id, req.Version, req.URL); err != nil {
		s.logger.Warn("firmware command failed", "device_id", id, "error", err)
		writeUnavailable(w, "failed to dispatch firmware update")
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"version":   req.Version,
	})
}
