package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Audio relay websocket. Trackers connect here directly with query
	// parameters; they carry no bearer token.
	if s.relay != nil {
		r.Get("/ws", s.relay.HandleWS)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/stats", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)

					r.Post("/restart", s.handleRestartDevice)
					r.Post("/firmware", s.handleUpdateFirmware)

					r.Get("/location", s.handleLatestLocation)
					r.Get("/location/history", s.handleLocationHistory)
					r.Post("/location/request", s.handleRequestLocation)
					r.Post("/tracking/start", s.handleStartTracking)
					r.Post("/tracking/stop", s.handleStopTracking)

					r.Post("/audio/start", s.handleStartListening)
					r.Post("/audio/stop", s.handleStopListening)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
