// Package constants provides shared constants used throughout the driftwatch codebase.
// This includes timeouts, limits, file permissions, and reconciliation defaults
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to catalog APIs
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// FetchTimeout is the timeout for paging through a single catalog
	FetchTimeout = 2 * time.Minute

	// CycleTimeout is the timeout for one full reconciliation cycle
	CycleTimeout = 5 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// ShutdownTimeout is the grace period for draining in-flight work on shutdown
	ShutdownTimeout = 10 * time.Second

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// Reconciliation defaults define the tunable knobs of the price pipeline.
// All of them can be overridden through configuration; these are the values
// used when nothing else is specified.
const (
	// DefaultCheckInterval is the pause between the completion of one
	// reconciliation cycle and the start of the next
	DefaultCheckInterval = 300 * time.Second

	// DefaultEpsilon is the dead-band under which two prices are considered equal
	DefaultEpsilon = 0.01

	// DefaultRaiseThreshold is the relative headroom required before a raise
	// is proposed (source above operator by more than this fraction)
	DefaultRaiseThreshold = 0.20

	// DefaultUndercutFraction is the fraction shaved off the source price
	// when computing a proposed operator price
	DefaultUndercutFraction = 0.01

	// DefaultPriceFloor is the minimum price any proposal may take
	DefaultPriceFloor = 1.00

	// DefaultSuppressionWindow is how long a declined or snoozed key stays quiet
	DefaultSuppressionWindow = 24 * time.Hour

	// DefaultPremiumMarker is the title token that flags the premium finish
	// on storefront products. Stripping it keys both catalogs identically.
	DefaultPremiumMarker = "chroma"

	// DefaultBundleTolerance is the allowed gap between a bundle price and the
	// sum of its constituent prices before a mismatch is raised
	DefaultBundleTolerance = 0.05

	// DefaultLowerGuardRatio is the relative delta above which a proposed
	// lower is treated as a probable listing mismatch
	DefaultLowerGuardRatio = 0.70

	// DefaultRaiseGuardRatio is the relative delta above which a proposed
	// raise is treated as a probable listing mismatch
	DefaultRaiseGuardRatio = 1.00

	// DefaultGuardAbsoluteMin is the minimum absolute price gap before the
	// mismatch guard engages at all
	DefaultGuardAbsoluteMin = 3.00

	// MaxBundleConstituents caps how many names the constituent extractor returns
	MaxBundleConstituents = 8
)

// Paging constants bound the catalog fetch loops
const (
	// MarketPageSize is the number of listings requested per source catalog page
	MarketPageSize = 72

	// MarketMaxPages is the hard cap on source catalog pages per cycle
	MarketMaxPages = 24

	// ShopfrontPageSize is the number of products requested per storefront page
	ShopfrontPageSize = 250

	// ShopfrontMaxPages is the hard cap on storefront pages per cycle
	ShopfrontMaxPages = 4

	// PageDelay is the polite pause between successive catalog page requests
	PageDelay = 300 * time.Millisecond
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like API tokens (rw-------)
	SecureFilePermissions = 0600
)

// Notification constants bound outbound chat traffic
const (
	// NotifyRatePerSecond is the steady-state message rate toward the chat platform
	NotifyRatePerSecond = 1

	// NotifyBurst is the token bucket burst size for notifications
	NotifyBurst = 1

	// NoticeLinesPerMessage is how many plain-text notice lines are packed
	// into one chat message
	NoticeLinesPerMessage = 5

	// MaxMessageLength is the chat platform's content length limit
	MaxMessageLength = 2000

	// MaxEmbedsPerMessage is the chat platform's embed count limit
	MaxEmbedsPerMessage = 10
)

// Gateway constants govern the persistent chat connection
const (
	// GatewayBackoffBase is the initial reconnect delay after a dropped connection
	GatewayBackoffBase = 2 * time.Second

	// GatewayBackoffMax is the cap on the reconnect delay
	GatewayBackoffMax = 2 * time.Minute

	// GatewayWriteTimeout bounds a single websocket write
	GatewayWriteTimeout = 10 * time.Second
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries = 3

	// ChannelBufferSize is the default buffer size for channels
	ChannelBufferSize = 100

	// WriteBufferSize is the default buffer size for write operations
	WriteBufferSize = 4096
)

// Path constants
const (
	// DefaultDataDir is the default directory for local document files
	DefaultDataDir = "~/.driftwatch"

	// DefaultConfigPath is the default path for the configuration file
	DefaultConfigPath = "~/.driftwatch.yaml"
)

// Format constants
const (
	// TimeFormatISO8601 is the ISO 8601 time format used in persisted documents
	TimeFormatISO8601 = time.RFC3339

	// TimeFormatHuman is a human-readable time format for notifications
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"
)
