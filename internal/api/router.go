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

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/debugOpts", s.handleDebugOpts)

	// Hub push endpoints. Each validates the requestor from its body.
	r.Post("/initial", s.handleInitial)
	r.Post("/update", s.handleUpdate)
	r.Post("/updateprefs", s.handleUpdatePrefs)
	r.Post("/refreshDevices", s.handleRefreshDevices)
	r.Post("/restartService", s.handleRestartService)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}
