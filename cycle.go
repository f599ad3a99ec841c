package driftwatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/docstore"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
	"github.com/driftwatch/driftwatch/pkg/snapshot"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Started  time.Time
	Duration time.Duration

	// Seeded is true when this pass found an empty snapshot, recorded
	// the current source prices, and deliberately detected nothing.
	Seeded bool

	SourceItems   int
	OperatorItems int

	Candidates     int
	GuardDiscards  int
	Raised         int
	AlreadyPending int

	BundleConfirmations int
	BundleMismatches    int
	MissingConstituents int

	StockAlerts     int
	NewListings     int
	RemovedListings int
}

// Run executes cycles until ctx is canceled. The pause between cycles
// is measured from the completion of one pass to the start of the
// next, so a slow fetch never causes overlapping passes.
func (m *monitor) Run(ctx context.Context) error {
	logging.Ctx(ctx).Info().
		Dur("interval", m.interval()).
		Msg("Reconciliation loop started")

	for {
		if _, err := m.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Ctx(ctx).Error().Err(err).Msg("Cycle failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.interval()):
		}
	}
}

// safeCycle converts a panic inside a cycle into an error, so a
// malformed persisted document degrades into a failed pass instead of
// killing the loop.
func (m *monitor) safeCycle(ctx context.Context) (rep *Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.ObserveCycle(0, "panic")
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return m.Cycle(ctx)
}

// Cycle runs one reconciliation pass: fetch both catalogs, detect price
// and stock divergence against the snapshot, reconcile bundles, route
// everything to the review channels, and replace the snapshot.
func (m *monitor) Cycle(ctx context.Context) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	log := logging.Ctx(ctx)
	rep := &Report{Started: started}

	source, operator, err := m.fetchBoth(ctx)
	if err != nil {
		m.metrics.ObserveCycle(time.Since(started), "fetch_failed")
		return nil, err
	}
	rep.SourceItems = len(source)
	rep.OperatorItems = len(operator)
	m.metrics.SetFetchedItems("market", len(source))
	m.metrics.SetFetchedItems("shopfront", len(operator))

	// An empty catalog means that side's fetch was effectively lost.
	// Detecting against it would read every pairing as a removal or a
	// stock-out, so the pass records nothing and waits for the next one.
	if len(source) == 0 || len(operator) == 0 {
		log.Warn().
			Int("source_items", rep.SourceItems).
			Int("operator_items", rep.OperatorItems).
			Msg("Empty catalog fetch; skipping detection this cycle")
		rep.Duration = time.Since(started)
		m.metrics.ObserveCycle(rep.Duration, "empty_fetch")
		return rep, nil
	}

	snap, err := m.snaps.Load(ctx)
	if err != nil {
		m.metrics.ObserveCycle(time.Since(started), "error")
		return nil, err
	}

	if snap.Empty() {
		if err := m.seed(ctx, source, operator); err != nil {
			m.metrics.ObserveCycle(time.Since(started), "error")
			return nil, err
		}
		rep.Seeded = true
		rep.Duration = time.Since(started)
		m.metrics.ObserveCycle(rep.Duration, "seeded")
		log.Info().
			Int("items", rep.SourceItems).
			Msg("Snapshot seeded; detection starts next cycle")
		return rep, nil
	}

	res := m.detector.Prices(source, operator, snap, m.reg, m.manager.PendingKeys())
	rep.Candidates = len(res.Candidates)
	rep.GuardDiscards = res.GuardDiscards
	rep.NewListings = len(res.NewListings)
	rep.RemovedListings = len(res.RemovedListings)
	m.metrics.AddGuardDiscards(res.GuardDiscards)

	m.raiseCandidates(ctx, res.Candidates, rep)
	m.checkStock(ctx, operator, rep)
	m.checkBundles(ctx, operator, rep)
	m.notices(ctx, res, rep)

	if err := m.snaps.Save(ctx, snapshot.FromItems(source)); err != nil {
		m.metrics.ObserveCycle(time.Since(started), "error")
		return rep, err
	}

	m.metrics.SetPendingActions(m.manager.Len())
	m.metrics.SetSuppressedKeys(m.reg.ActiveCount())

	rep.Duration = time.Since(started)
	m.metrics.ObserveCycle(rep.Duration, "ok")

	log.Info().
		Int("source_items", rep.SourceItems).
		Int("operator_items", rep.OperatorItems).
		Int("candidates", rep.Candidates).
		Int("guard_discards", rep.GuardDiscards).
		Int("raised", rep.Raised).
		Int("bundle_mismatches", rep.BundleMismatches).
		Int("stock_alerts", rep.StockAlerts).
		Int("new_listings", rep.NewListings).
		Int("removed_listings", rep.RemovedListings).
		Dur("duration", rep.Duration).
		Msg("Cycle complete")

	return rep, nil
}

// fetchBoth retrieves the two catalogs concurrently. The clients absorb
// per-page failures themselves, so an error here means cancellation or
// a completely unreachable endpoint.
func (m *monitor) fetchBoth(ctx context.Context) (source, operator map[catalog.Key]catalog.Item, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := m.config.source.Fetch(gctx)
		if err != nil {
			m.metrics.IncFetchFailure("market")
			return fmt.Errorf("fetching source catalog: %w", err)
		}
		source = items
		return nil
	})
	g.Go(func() error {
		items, err := m.config.storefront.Fetch(gctx)
		if err != nil {
			m.metrics.IncFetchFailure("shopfront")
			return fmt.Errorf("fetching operator catalog: %w", err)
		}
		operator = items
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return source, operator, nil
}

// seed records the first-ever snapshot and stock state without raising
// anything.
func (m *monitor) seed(ctx context.Context, source, operator map[catalog.Key]catalog.Item) error {
	if err := m.snaps.Save(ctx, snapshot.FromItems(source)); err != nil {
		return err
	}
	_, quantities := detect.Stock(operator, nil, m.reg)
	return docstore.PutJSON(ctx, m.docs, docstore.SlotStockState, quantities)
}

// raiseCandidates turns detector output into pending actions on the
// price channel.
func (m *monitor) raiseCandidates(ctx context.Context, cands []detect.Candidate, rep *Report) {
	var lower, raise int
	for _, c := range cands {
		switch c.Kind {
		case detect.KindPriceLower:
			lower++
		case detect.KindPriceRaise:
			raise++
		}
		m.raise(ctx, c, m.config.priceChannel, rep)
	}
	m.metrics.AddCandidates(string(detect.KindPriceLower), lower)
	m.metrics.AddCandidates(string(detect.KindPriceRaise), raise)
}

// raise creates one pending action and renders its notification. A
// concurrent raise for the same key is counted, not logged: the entry
// already in flight covers it.
func (m *monitor) raise(ctx context.Context, c detect.Candidate, channel string, rep *Report) {
	act, err := m.manager.Raise(ctx, c, channel)
	if err != nil {
		if errors.IsAlreadyPending(err) {
			rep.AlreadyPending++
			return
		}
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("item", string(c.Key)).
			Msg("Failed to raise action")
		return
	}
	rep.Raised++
	m.metrics.IncActionRaised()
	m.hooks.actionRaised(*act)

	if m.notifier == nil {
		return
	}
	ref, err := m.notifier.ActionRaised(ctx, *act)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("item", string(c.Key)).
			Msg("Failed to post action notification")
		return
	}
	m.manager.SetMessageRef(ctx, act.ID, ref)
}

// checkStock alerts on quantity transitions to zero and replaces the
// persisted stock state.
func (m *monitor) checkStock(ctx context.Context, operator map[catalog.Key]catalog.Item, rep *Report) {
	prev := make(map[catalog.Key]int)
	if _, err := docstore.GetJSON(ctx, m.docs, docstore.SlotStockState, &prev); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Stock state unreadable; reseeding")
		prev = nil
	}

	alerts, next := detect.Stock(operator, prev, m.reg)
	rep.StockAlerts = len(alerts)

	if m.notifier != nil {
		for _, alert := range alerts {
			if err := m.notifier.StockAlert(ctx, alert); err != nil {
				logging.Ctx(ctx).Warn().
					Err(err).
					Str("item", string(alert.Key)).
					Msg("Failed to post stock alert")
			}
		}
	}

	if err := docstore.PutJSON(ctx, m.docs, docstore.SlotStockState, next); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist stock state")
	}
}

// checkBundles scans for new compositions, verifies confirmed ones, and
// raises a price-fix action per surviving mismatch on the bundle
// channel.
func (m *monitor) checkBundles(ctx context.Context, operator map[catalog.Key]catalog.Item, rep *Report) {
	confirmations := m.bundles.Scan(ctx, operator)
	rep.BundleConfirmations = len(confirmations)

	if m.notifier != nil {
		for _, pc := range confirmations {
			if _, err := m.notifier.BundleConfirmation(ctx, pc); err != nil {
				logging.Ctx(ctx).Warn().
					Err(err).
					Str("bundle", pc.Name).
					Msg("Failed to post bundle confirmation")
			}
		}
	}

	verify := m.bundles.Verify(ctx, operator)
	rep.BundleMismatches = len(verify.Mismatches)
	rep.MissingConstituents = len(verify.Missing)
	m.metrics.AddCandidates(string(detect.KindBundleFix), len(verify.Mismatches))

	for _, c := range verify.Mismatches {
		m.hooks.bundleMismatch(c)
		if m.reg.Suppressed(c.Key) {
			continue
		}
		m.raise(ctx, c, m.config.bundleChannel, rep)
	}

	if len(verify.Missing) > 0 && m.notifier != nil {
		if err := m.notifier.MissingConstituents(ctx, verify.Missing); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to post missing constituent alert")
		}
	}
}

// notices posts the informational new/removed listing lines.
func (m *monitor) notices(ctx context.Context, res *detect.Result, rep *Report) {
	count := len(res.NewListings) + len(res.RemovedListings)
	if count == 0 {
		return
	}
	m.metrics.AddNotices(count)

	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notices(ctx, res); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to post listing notices")
	}
}
