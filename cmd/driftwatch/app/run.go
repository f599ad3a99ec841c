package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/driftwatch/driftwatch"
	"github.com/driftwatch/driftwatch/internal/gateway"
	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/internal/server"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/errors"
)

// NewRunCommand creates the run command, the long-running daemon mode.
func (a *App) NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reconciliation daemon",
		Long: `Run starts every loop: the reconciliation cycle, the interaction
webhook server, and the chat command listener. All loops stop together
on SIGINT or SIGTERM, draining in-flight work first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDaemon(cmd.Context())
		},
	}
}

// runDaemon wires the monitor, webhook server, and gateway together and
// runs them until the signal context is cancelled.
func (a *App) runDaemon(ctx context.Context) error {
	cfg := a.config
	if err := a.requireDaemonConfig(); err != nil {
		return err
	}

	// The default registry backs the /metrics endpoint.
	m := metrics.New(nil)
	mon, err := a.MonitorWithOptions(driftwatch.WithMetrics(m))
	if err != nil {
		return err
	}

	a.banner()

	if err := mon.Load(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("State restore failed; starting with empty state")
	}

	serverCfg := server.DefaultConfig()
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	serverCfg.PublicKey = cfg.PublicKey
	srv, err := server.New(serverCfg, server.Deps{
		Manager: mon.Approvals(),
		Bundles: mon.Bundles(),
		Metrics: m,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, constants.ShutdownTimeout) })
	if cfg.AdminID != "" {
		gw := gateway.New(cfg.BotToken, mon.Approvals(), mon.Bundles(), a.Notifier(),
			gateway.WithAdminID(cfg.AdminID))
		g.Go(func() error { return gw.Run(gctx) })
	}

	// A cancelled parent context is an orderly shutdown, not a failure.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	a.logger.Info().Msg("Shutdown complete")
	return nil
}

// requireDaemonConfig validates the settings only the daemon needs.
// Catalog endpoints are validated when the monitor is built.
func (a *App) requireDaemonConfig() error {
	var missing []string
	if a.config.BotToken == "" {
		missing = append(missing, "bot_token")
	}
	if a.config.PublicKey == "" {
		missing = append(missing, "public_key")
	}
	if a.config.PriceChannelID == "" {
		missing = append(missing, "price_channel_id")
	}
	if len(missing) > 0 {
		return &errors.ConfigError{
			Component: "run",
			Message:   "missing required settings: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// banner logs the resolved configuration once at startup.
func (a *App) banner() {
	cfg := a.config
	a.logger.Info().
		Str("version", a.version).
		Str("market", cfg.MarketURL).
		Str("shop", cfg.ShopURL).
		Str("listen", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).
		Dur("interval", cfg.CheckInterval).
		Dur("suppression_window", cfg.SuppressionWindow).
		Bool("redis", cfg.RedisAddr != "").
		Bool("gateway", cfg.AdminID != "").
		Bool("bundle_channel", cfg.BundleChannelID != "").
		Msg("Driftwatch starting")
}
