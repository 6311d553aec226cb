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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Automation rule endpoints
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRule)
				r.Patch("/", s.handleUpdateRule)
				r.Delete("/", s.handleDeleteRule)
				r.Post("/run", s.handleRunRule)
				r.Get("/executions", s.handleListExecutions)
			})
		})

		// Execution lookup
		r.Get("/executions/{id}", s.handleGetExecution)

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Post("/command", s.handleDeviceCommand)
			})
		})

		// Alert endpoints
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Post("/{id}/ack", s.handleAcknowledgeAlert)
		})

		// WebSocket (subscription management happens over the socket)
		r.Get("/ws", s.hub.ServeWS)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
