// Package app provides the application context and dependency wiring for
// the driftwatch CLI. It centralizes configuration, logging, and monitor
// construction so commands stay thin.
package app

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/driftwatch/driftwatch"
	"github.com/driftwatch/driftwatch/internal/notify"
	"github.com/driftwatch/driftwatch/internal/sources/market"
	"github.com/driftwatch/driftwatch/internal/sources/shopfront"
	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/docstore"
	"github.com/driftwatch/driftwatch/pkg/errors"
)

// App represents the driftwatch application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Monitor instance (lazy-initialized, singleton)
	mu       sync.RWMutex
	monitor  driftwatch.Monitor
	notifier *notify.Notifier
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, &errors.ConfigError{Component: "app", Message: "loading configuration", Err: err}
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Monitor returns the monitor instance, creating it lazily if needed.
// This is thread-safe and ensures only one instance is created.
func (a *App) Monitor() (driftwatch.Monitor, error) {
	a.mu.RLock()
	if a.monitor != nil {
		mon := a.monitor
		a.mu.RUnlock()
		return mon, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.monitor != nil {
		return a.monitor, nil
	}

	opts, err := a.buildMonitorOptions()
	if err != nil {
		return nil, err
	}
	mon, err := driftwatch.New(opts...)
	if err != nil {
		return nil, err
	}

	a.monitor = mon
	return mon, nil
}

// MonitorWithOptions builds a new monitor instance from the application
// configuration plus the given extra options. Commands that need a
// configuration the default instance does not carry use this instead of
// Monitor.
func (a *App) MonitorWithOptions(extra ...driftwatch.Option) (driftwatch.Monitor, error) {
	a.mu.Lock()
	opts, err := a.buildMonitorOptions()
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return driftwatch.New(append(opts, extra...)...)
}

// Notifier returns the chat notifier, or nil when the bot token or the
// price channel is not configured. Notifications are optional for the
// one-shot commands.
func (a *App) Notifier() *notify.Notifier {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notifierLocked()
}

func (a *App) notifierLocked() *notify.Notifier {
	if a.notifier != nil {
		return a.notifier
	}
	if a.config.BotToken == "" || a.config.PriceChannelID == "" {
		return nil
	}
	a.notifier = notify.New(a.config.BotToken, notify.WithChannel(a.config.PriceChannelID))
	return a.notifier
}

// buildMonitorOptions constructs monitor options from the app
// configuration. Callers must hold a.mu.
func (a *App) buildMonitorOptions() ([]driftwatch.Option, error) {
	cfg := a.config

	var missing []string
	if cfg.MarketURL == "" {
		missing = append(missing, "market_url")
	}
	if cfg.ShopURL == "" {
		missing = append(missing, "shop_url")
	}
	if cfg.ShopToken == "" {
		missing = append(missing, "shop_token")
	}
	if len(missing) > 0 {
		return nil, &errors.ConfigError{
			Component: "app",
			Message:   "missing required settings: " + strings.Join(missing, ", "),
		}
	}

	store, err := a.buildStore()
	if err != nil {
		return nil, err
	}

	var marketOpts []market.Option
	if len(cfg.MarketGrades) > 0 {
		marketOpts = append(marketOpts, market.WithGrades(cfg.MarketGrades...))
	}

	approvalOpts := []approval.Option{approval.WithPriceFloor(cfg.PriceFloor)}
	if len(cfg.ReviewerRoles) > 0 {
		approvalOpts = append(approvalOpts, approval.WithAllowedRoles(cfg.ReviewerRoles))
	}
	if cfg.AdminID != "" {
		approvalOpts = append(approvalOpts, approval.WithAdmin(cfg.AdminID))
	}

	var bundleOpts []bundle.Option
	if cfg.OverridesPath != "" {
		bundleOpts = append(bundleOpts, bundle.WithOverridesPath(cfg.OverridesPath))
	}

	detectOpts := []detect.Option{
		detect.WithRaiseThreshold(cfg.RaiseThreshold),
		detect.WithPriceFloor(cfg.PriceFloor),
	}
	if cfg.Undercut > 0 {
		detectOpts = append(detectOpts, detect.WithUndercut(cfg.Undercut))
	}

	opts := []driftwatch.Option{
		driftwatch.WithSource(market.New(cfg.MarketURL, marketOpts...)),
		driftwatch.WithStorefront(a.buildStorefront()),
		driftwatch.WithStore(store),
		driftwatch.WithDetector(detect.New(detectOpts...)),
		driftwatch.WithInterval(cfg.CheckInterval),
		driftwatch.WithSuppressionWindow(cfg.SuppressionWindow),
		driftwatch.WithChannels(cfg.PriceChannelID, cfg.BundleChannelID),
		driftwatch.WithApprovalOptions(approvalOpts...),
	}
	if len(bundleOpts) > 0 {
		opts = append(opts, driftwatch.WithBundleOptions(bundleOpts...))
	}

	if notifier := a.notifierLocked(); notifier != nil {
		opts = append(opts, driftwatch.WithNotifier(notifier))
	}

	return opts, nil
}

// buildStorefront constructs the storefront client. The premium marker
// must reach the client or every premium title keys as a distinct
// standard item and never pairs with its source listing.
func (a *App) buildStorefront() *shopfront.Client {
	return shopfront.New(a.config.ShopURL, a.config.ShopToken,
		shopfront.WithPremiumMarker(a.config.PremiumMarker))
}

// buildStore assembles the document store: a JSON file store under the
// data dir, fronted by Redis when an address is configured.
func (a *App) buildStore() (docstore.Store, error) {
	local, err := docstore.NewFileStore(a.config.DataDir)
	if err != nil {
		return nil, err
	}
	if a.config.RedisAddr == "" {
		return local, nil
	}
	remote := docstore.NewRedisStore(a.config.RedisAddr, a.config.RedisPassword, a.config.RedisDB)
	return docstore.NewTiered(remote, local), nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithMonitor sets a custom monitor instance (useful for testing).
func WithMonitor(mon driftwatch.Monitor) Option {
	return func(a *App) error {
		a.monitor = mon
		return nil
	}
}
