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

		// Discovery control
		r.Route("/discovery", func(r chi.Router) {
			r.Post("/start", s.handleStartDiscovery)
			r.Post("/stop", s.handleStopDiscovery)
			r.Get("/sessions", s.handleListSessions)
			r.Get("/history", s.handleSessionHistory)
			r.Get("/traffic", s.handleListTraffic)
		})

		// Gateway endpoints
		r.Route("/gateways", func(r chi.Router) {
			r.Get("/", s.handleListGateways)
			r.Post("/{mac}/frames", s.handleSendFrame)
		})

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
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
