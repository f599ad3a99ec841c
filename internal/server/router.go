package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftwatch/driftwatch/internal/server/middleware"
	"github.com/driftwatch/driftwatch/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	// Interactions carry their own authentication: the platform signs
	// every callback, so only this route gets the signature gate.
	mux.Handle("/interactions", middleware.Signature(s.verifyKey, s.logger)(http.HandlerFunc(s.handleInteraction)))

	mux.HandleFunc("/healthz", s.handleHealth)

	if s.config.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	)(mux)
}

// handleHealth reports liveness plus a small workload summary.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return
	}

	response.OK(w, map[string]any{
		"status":  "ok",
		"uptime":  int64(time.Since(s.startTime).Seconds()),
		"pending": s.deps.Manager.Len(),
	})
}
