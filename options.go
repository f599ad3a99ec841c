package driftwatch

import (
	"time"

	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/docstore"
	"github.com/driftwatch/driftwatch/pkg/errors"
)

// config collects everything New assembles a Monitor from.
type config struct {
	source     Fetcher
	storefront Storefront
	docs       docstore.Store
	notifier   Notifier
	metrics    *metrics.Metrics
	detector   detect.Detector

	interval time.Duration
	window   time.Duration

	priceChannel  string
	bundleChannel string

	approvalOpts []approval.Option
	bundleOpts   []bundle.Option
}

func defaultConfig() *config {
	return &config{
		docs:     docstore.NewMemStore(),
		interval: constants.DefaultCheckInterval,
		window:   constants.DefaultSuppressionWindow,
	}
}

// Option is a function that configures a Monitor instance
type Option func(*config) error

// WithSource sets the source marketplace fetcher. Required.
func WithSource(f Fetcher) Option {
	return func(c *config) error {
		c.source = f
		return nil
	}
}

// WithStorefront sets the operator storefront, used both to fetch the
// operator catalog and to apply approved prices. Required.
func WithStorefront(s Storefront) Option {
	return func(c *config) error {
		c.storefront = s
		return nil
	}
}

// WithStore sets the document store backing all persisted state. The
// default is an in-memory store that forgets everything on restart.
func WithStore(docs docstore.Store) Option {
	return func(c *config) error {
		c.docs = docs
		return nil
	}
}

// WithNotifier connects the review channel. Without one the monitor
// detects and raises silently.
func WithNotifier(n Notifier) Option {
	return func(c *config) error {
		c.notifier = n
		return nil
	}
}

// WithMetrics attaches cycle and workflow instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithDetector overrides the change detector, usually to tune its
// thresholds via detect options.
func WithDetector(d detect.Detector) Option {
	return func(c *config) error {
		c.detector = d
		return nil
	}
}

// WithInterval sets the pause between the completion of one cycle and
// the start of the next.
func WithInterval(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return &errors.ConfigError{Component: "driftwatch", Message: "interval must be positive"}
		}
		c.interval = d
		return nil
	}
}

// WithSuppressionWindow sets how long declined or snoozed keys stay
// quiet.
func WithSuppressionWindow(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return &errors.ConfigError{Component: "driftwatch", Message: "suppression window must be positive"}
		}
		c.window = d
		return nil
	}
}

// WithChannels routes price and stock actions to priceChannel and
// bundle work to bundleChannel. An empty bundle channel falls back to
// the price channel.
func WithChannels(priceChannel, bundleChannel string) Option {
	return func(c *config) error {
		c.priceChannel = priceChannel
		c.bundleChannel = bundleChannel
		if c.bundleChannel == "" {
			c.bundleChannel = priceChannel
		}
		return nil
	}
}

// WithApprovalOptions forwards options to the approval manager, such as
// the price floor and the reviewer role gate.
func WithApprovalOptions(opts ...approval.Option) Option {
	return func(c *config) error {
		c.approvalOpts = append(c.approvalOpts, opts...)
		return nil
	}
}

// WithBundleOptions forwards options to the bundle reconciler.
func WithBundleOptions(opts ...bundle.Option) Option {
	return func(c *config) error {
		c.bundleOpts = append(c.bundleOpts, opts...)
		return nil
	}
}
