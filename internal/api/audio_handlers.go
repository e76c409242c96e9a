package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// listenRequest is the request body for POST /devices/{id}/audio/start.
type listenRequest struct {
	Duration int `json:"duration"`
}

// handleStartListening commands a tracker to begin streaming microphone
// audio. The stream itself arrives over the relay websocket, not this API.
func (s *Server) handleStartListening(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req listenRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}
	if req.Duration < 0 {
		writeBadRequest(w, "duration must not be negative")
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

	if err := s.commands.StartListening(id, req.Duration); err != nil {
		s.logger.Warn("start listening failed", "device_id", id, "error", err)
		writeUnavailable(w, "failed to dispatch audio command")
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"listening": true,
		"duration":  req.Duration,
	})
}

// handleStopListening commands a tracker to stop streaming audio.
func (s *Server) handleStopListening(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.registry.Exists(r.Context(), id) {
		writeNotFound(w, "device not found")
		return
	}
	if s.commands == nil {
		writeUnavailable(w, "command bus not available")
		return
	}

	if err := s.commands.StopListening(id); err != nil {
		s.logger.Warn("stop listening failed", "device_id", id, "error", err)
		writeUnavailable(w, "failed to dispatch audio command")
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{"device_id": id, "listening": false})
}
