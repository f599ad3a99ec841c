// Package server hosts the inbound interaction webhook. Button clicks
// arrive here as signed callbacks, get decoded into workflow operations,
// and are answered with ephemeral messages only the clicking reviewer
// sees. The server also exposes health and metrics endpoints.
package server

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// Deps are the collaborators interaction dispatch resolves into.
// Metrics may be nil; counters are then skipped. Approval resolutions
// announce themselves through the manager's resolve hook, so the server
// never edits channel messages itself.
type Deps struct {
	Manager *approval.Manager
	Bundles *bundle.Reconciler
	Metrics *metrics.Metrics
}

// Server holds the webhook server state and dependencies.
type Server struct {
	deps      Deps
	verifyKey ed25519.PublicKey
	config    Config
	logger    *zerolog.Logger
	startTime time.Time
}

// New creates a server instance. The configured public key must be a
// hex-encoded Ed25519 key of the standard size.
func New(cfg Config, deps Deps) (*Server, error) {
	key, err := hex.DecodeString(cfg.PublicKey)
	if err != nil {
		return nil, &errors.ConfigError{Component: "server", Message: "public key is not valid hex", Err: err}
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, &errors.ConfigError{Component: "server", Message: "public key has wrong length"}
	}
	if deps.Manager == nil || deps.Bundles == nil {
		return nil, &errors.ConfigError{Component: "server", Message: "manager and bundles are required"}
	}

	return &Server{
		deps:      deps,
		verifyKey: ed25519.PublicKey(key),
		config:    cfg,
		logger:    logging.Default(),
		startTime: time.Now(),
	}, nil
}

// Handler returns the configured http.Handler with the middleware chain
// applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// ListenAndServe runs the HTTP server until ctx is canceled, then drains
// in-flight requests within the given grace period.
func (s *Server) ListenAndServe(ctx context.Context, grace time.Duration) error {
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Webhook server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Webhook server shutdown timed out")
		return err
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// StartTime returns the server start time for uptime reporting.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
