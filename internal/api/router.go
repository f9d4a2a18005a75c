package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/health-check", s.handleHealthCheck)
			r.Post("/toggle-all", s.handleToggleAll)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/history", s.handleDeviceHistory)
				r.Post("/probe", s.handleProbeDevice)
				r.Post("/toggle", s.handleToggleDevice)
			})
		})

		r.Route("/scenes", func(r chi.Router) {
			r.Get("/", s.handleListScenes)
			r.Post("/audit", s.handleAuditAll)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetScene)
				r.Post("/audit", s.handleAuditScene)
				r.Post("/test", s.handleTestScene)
				r.Post("/repair", s.handleRepairScene)
			})
		})

		r.Get("/backups", s.handleListBackups)
		r.Post("/backups/{id}/restore", s.handleRestoreBackup)
		r.Get("/repairs", s.handleListRepairs)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.monitor.Status()
	status := "ok"
	if st.LastRefreshErr != "" {
		status = "degraded"
	}
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"engine":  st,
		"clients": clients,
	})
}
