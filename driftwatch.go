// Package driftwatch keeps an operator storefront priced against the
// marketplace it competes with. Each reconciliation cycle fetches both
// catalogs, pairs listings by canonical item key, and turns qualifying
// price divergences into pending actions a human reviewer resolves from
// the notification channel. Bundles, stock-outs, and new or removed
// listings ride the same cycle.
//
// The package wires the building blocks under pkg/ and internal/ into a
// single Monitor. Callers embed it behind the cmd/driftwatch CLI or
// construct one directly:
//
//	mon, err := driftwatch.New(
//		driftwatch.WithSource(market.New(searchURL)),
//		driftwatch.WithStorefront(shopfront.New(shopURL, token,
//			shopfront.WithPremiumMarker(marker))),
//		driftwatch.WithStore(docs),
//		driftwatch.WithNotifier(notifier),
//	)
package driftwatch

import (
	"context"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/docstore"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
	"github.com/driftwatch/driftwatch/pkg/snapshot"
	"github.com/driftwatch/driftwatch/pkg/suppress"
)

// Fetcher retrieves one catalog as a canonically keyed item map.
type Fetcher interface {
	Fetch(ctx context.Context) (map[catalog.Key]catalog.Item, error)
}

// Storefront is the operator side of the pipeline: the catalog fetch
// plus the price mutation the approval workflow applies.
type Storefront interface {
	Fetcher
	approval.Mutator
}

// Notifier renders cycle output to the review channels. *notify.Notifier
// satisfies it; a nil notifier leaves the cycle silent.
type Notifier interface {
	ActionRaised(ctx context.Context, act approval.PendingAction) (string, error)
	ActionResolved(ctx context.Context, act approval.PendingAction, outcome, actor string) error
	BundleConfirmation(ctx context.Context, pc bundle.PendingConfirmation) (string, error)
	StockAlert(ctx context.Context, alert detect.StockAlert) error
	MissingConstituents(ctx context.Context, missing []bundle.MissingConstituent) error
	Notices(ctx context.Context, res *detect.Result) error
}

// Monitor runs reconciliation cycles and exposes the workflow state.
type Monitor interface {
	// Load restores persisted workflow state from the document store.
	Load(ctx context.Context) error

	// Cycle runs one fetch-detect-route pass and reports what it did.
	Cycle(ctx context.Context) (*Report, error)

	// Run executes cycles until ctx is canceled, waiting the configured
	// interval between the completion of one pass and the start of the
	// next.
	Run(ctx context.Context) error

	// Approvals exposes the pending-action workflow.
	Approvals() *approval.Manager

	// Bundles exposes the bundle reconciler.
	Bundles() *bundle.Reconciler

	// OnActionRaised registers a callback fired for every pending action
	// a cycle raises.
	OnActionRaised(ActionRaisedHook)

	// OnActionResolved registers a callback fired when a reviewer or a
	// bulk command resolves a pending action.
	OnActionResolved(ActionResolvedHook)

	// OnBundleMismatch registers a callback fired when a confirmed
	// bundle's price diverges from its constituent sum.
	OnBundleMismatch(BundleMismatchHook)
}

// monitor is the internal implementation of the Monitor interface.
type monitor struct {
	config *config

	docs     docstore.Store
	snaps    *snapshot.Store
	reg      *suppress.Registry
	detector detect.Detector
	manager  *approval.Manager
	bundles  *bundle.Reconciler

	notifier Notifier
	metrics  *metrics.Metrics
	hooks    *hooks

	// mu serializes cycles; the loop never overlaps itself and a manual
	// Cycle call queues behind a running one.
	mu sync.Mutex
}

// New assembles a Monitor from the given options. A source fetcher and
// a storefront are required; everything else has workable defaults.
func New(opts ...Option) (Monitor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.source == nil {
		return nil, &errors.ConfigError{Component: "driftwatch", Message: "a source catalog fetcher is required"}
	}
	if cfg.storefront == nil {
		return nil, &errors.ConfigError{Component: "driftwatch", Message: "a storefront is required"}
	}

	m := &monitor{
		config:   cfg,
		docs:     cfg.docs,
		snaps:    snapshot.NewStore(cfg.docs),
		reg:      suppress.New(cfg.window),
		detector: cfg.detector,
		notifier: cfg.notifier,
		metrics:  cfg.metrics,
		hooks:    newHooks(),
	}
	if m.detector == nil {
		m.detector = detect.New()
	}

	approvalOpts := append([]approval.Option{}, cfg.approvalOpts...)
	approvalOpts = append(approvalOpts, approval.WithResolveHook(m.actionResolved))
	m.manager = approval.New(cfg.docs, m.reg, cfg.storefront, approvalOpts...)
	m.bundles = bundle.New(cfg.docs, cfg.bundleOpts...)

	return m, nil
}

// Load restores the suppression registry, the pending-action set, and
// the bundle state persisted by a previous run.
func (m *monitor) Load(ctx context.Context) error {
	if _, err := docstore.GetJSON(ctx, m.docs, docstore.SlotSuppressions, m.reg); err != nil {
		return err
	}
	if err := m.manager.Load(ctx); err != nil {
		return err
	}
	if err := m.bundles.Load(ctx); err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Int("pending", m.manager.Len()).
		Int("suppressed", m.reg.ActiveCount()).
		Msg("Workflow state restored")
	return nil
}

// Approvals exposes the pending-action workflow.
func (m *monitor) Approvals() *approval.Manager {
	return m.manager
}

// Bundles exposes the bundle reconciler.
func (m *monitor) Bundles() *bundle.Reconciler {
	return m.bundles
}

// OnActionRaised registers a callback fired for every pending action a
// cycle raises.
func (m *monitor) OnActionRaised(fn ActionRaisedHook) {
	m.hooks.addRaised(fn)
}

// OnActionResolved registers a callback fired when a reviewer or a bulk
// command resolves a pending action.
func (m *monitor) OnActionResolved(fn ActionResolvedHook) {
	m.hooks.addResolved(fn)
}

// OnBundleMismatch registers a callback fired when a confirmed bundle's
// price diverges from its constituent sum.
func (m *monitor) OnBundleMismatch(fn BundleMismatchHook) {
	m.hooks.addMismatch(fn)
}

// actionResolved is installed as the approval manager's resolve hook.
// It is the single place resolved-message edits and resolution counters
// happen, whether the resolution came from a button click or a bulk
// command.
func (m *monitor) actionResolved(act approval.PendingAction, outcome approval.Outcome, actor approval.Actor) {
	m.hooks.actionResolved(act, outcome, actor)

	m.metrics.IncActionResolved(string(outcome))
	m.metrics.SetPendingActions(m.manager.Len())

	if m.notifier == nil || act.MessageRef == "" {
		return
	}
	name := actor.Name
	if name == "" {
		name = actor.ID
	}
	if err := m.notifier.ActionResolved(context.Background(), act, outcomeDisplay(outcome), name); err != nil {
		logging.Warn().
			Err(err).
			Str("approval_id", act.ID).
			Msg("Failed to edit resolved message")
	}
}

func outcomeDisplay(outcome approval.Outcome) string {
	switch outcome {
	case approval.OutcomeApproved:
		return "Approved"
	case approval.OutcomeDeclined:
		return "Declined"
	case approval.OutcomeIgnored:
		return "Ignored"
	}
	return string(outcome)
}

// interval returns the configured completion-to-start cycle spacing.
func (m *monitor) interval() time.Duration {
	return m.config.interval
}
