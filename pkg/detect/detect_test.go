package detect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/snapshot"
	"github.com/driftwatch/driftwatch/pkg/suppress"
)

func sourceItem(name string, price float64) catalog.Item {
	return catalog.Item{Name: name, Price: price, ListingID: "L1"}
}

func operatorItem(name string, price float64) catalog.Item {
	return catalog.Item{Name: name, Price: price, VariantID: 1001, ProductID: 2001}
}

func TestFirstRunSeedsSilently(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 9.80),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 10.00),
	}

	result := d.Prices(source, operator, snapshot.Snapshot{}, nil, nil)

	assert.Empty(t, result.Candidates)
	assert.Empty(t, result.NewListings)
	assert.Empty(t, result.RemovedListings)
}

func TestLowerEmitted(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 9.80),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 10.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 10.00},
	}

	result := d.Prices(source, operator, snap, nil, nil)

	require.Len(t, result.Candidates, 1)
	c := result.Candidates[0]
	assert.Equal(t, detect.KindPriceLower, c.Kind)
	assert.Equal(t, catalog.Key("widget|standard"), c.Key)
	assert.Equal(t, 10.00, c.OperatorPrice)
	assert.Equal(t, 9.80, c.SourcePrice)
	assert.InDelta(t, 9.70, c.Proposed, 1e-9)
	assert.Equal(t, int64(1001), c.VariantID)
	assert.Equal(t, int64(2001), c.ProductID)
}

func TestMismatchGuardDiscards(t *testing.T) {
	d := detect.New()

	// 300% relative and $15 absolute gap on a non-cheap item: almost
	// certainly two different physical items sharing a key.
	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 20.00),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 5.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 19.00},
	}

	result := d.Prices(source, operator, snap, nil, nil)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.GuardDiscards)
}

func TestCheapItemExemptFromGuard(t *testing.T) {
	d := detect.New()

	// 83% relative gap but only $0.25 absolute on a $0.30 item: the
	// absolute floor keeps low-price items actionable.
	source := map[catalog.Key]catalog.Item{
		"pin|standard": sourceItem("Pin", 0.05),
	}
	operator := map[catalog.Key]catalog.Item{
		"pin|standard": operatorItem("Pin", 0.30),
	}
	snap := snapshot.Snapshot{
		"pin|standard": {Name: "Pin", Price: 0.10},
	}

	result := d.Prices(source, operator, snap, nil, nil)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, detect.KindPriceLower, result.Candidates[0].Kind)
	assert.Equal(t, 0, result.GuardDiscards)
}

func TestRaiseEmitted(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 13.00),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 10.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 12.50},
	}

	result := d.Prices(source, operator, snap, nil, nil)

	require.Len(t, result.Candidates, 1)
	c := result.Candidates[0]
	assert.Equal(t, detect.KindPriceRaise, c.Kind)
	assert.InDelta(t, 12.87, c.Proposed, 1e-9)
}

func TestRaiseBelowThresholdIgnored(t *testing.T) {
	d := detect.New()

	// 15% above operator does not clear the default 20% threshold, and
	// the source is not lower either.
	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 11.50),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 10.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 9.00},
	}

	result := d.Prices(source, operator, snap, nil, nil)
	assert.Empty(t, result.Candidates)
}

func TestGuardRatioDependsOnDirection(t *testing.T) {
	d := detect.New()

	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 1.00},
	}

	// 80% relative drop exceeds the 0.70 lower ratio: discarded.
	lower := d.Prices(
		map[catalog.Key]catalog.Item{"widget|standard": sourceItem("Widget", 2.00)},
		map[catalog.Key]catalog.Item{"widget|standard": operatorItem("Widget", 10.00)},
		snap, nil, nil,
	)
	assert.Empty(t, lower.Candidates)
	assert.Equal(t, 1, lower.GuardDiscards)

	// The same 80% relative gap upward stays under the 1.00 raise ratio.
	raise := d.Prices(
		map[catalog.Key]catalog.Item{"widget|standard": sourceItem("Widget", 18.00)},
		map[catalog.Key]catalog.Item{"widget|standard": operatorItem("Widget", 10.00)},
		snap, nil, nil,
	)
	require.Len(t, raise.Candidates, 1)
	assert.Equal(t, detect.KindPriceRaise, raise.Candidates[0].Kind)
}

func TestNoveltyGateSkipsUnchangedSource(t *testing.T) {
	d := detect.New()

	// The divergence was already surfaced last cycle from the same
	// source price; do not raise it again.
	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 9.80),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 10.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 9.80},
	}

	result := d.Prices(source, operator, snap, nil, nil)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.SkippedStale)
}

func TestSuppressedKeySkipped(t *testing.T) {
	d := detect.New()

	reg := suppress.New(time.Hour)
	reg.Suppress("widget|standard", suppress.ReasonDeclined)

	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 9.80),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 10.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 10.00},
	}

	result := d.Prices(source, operator, snap, reg, nil)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.SkippedSuppressed)
}

func TestPendingKeySkipped(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 9.80),
	}
	operator := map[catalog.Key]catalog.Item{
		"widget|standard": operatorItem("Widget", 10.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 10.00},
	}
	pending := map[catalog.Key]bool{"widget|standard": true}

	result := d.Prices(source, operator, snap, nil, pending)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.SkippedPending)
}

func TestUnpairedKeySkipped(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 9.80),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 10.00},
	}

	result := d.Prices(source, map[catalog.Key]catalog.Item{}, snap, nil, nil)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.Unpaired)
}

func TestNewListingNotice(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"frost blade|premium": {Name: "Frost Blade", Price: 55.00, Grade: "ancient"},
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 10.00},
	}

	result := d.Prices(source, map[catalog.Key]catalog.Item{}, snap, nil, nil)

	require.Len(t, result.NewListings, 1)
	n := result.NewListings[0]
	assert.Equal(t, catalog.Key("frost blade|premium"), n.Key)
	assert.Equal(t, "Frost Blade", n.Name)
	assert.Equal(t, 55.00, n.SourcePrice)
	assert.Equal(t, "ancient", n.Grade)
	assert.InDelta(t, 54.45, n.Recommended, 1e-9)
}

func TestNewListingWithCandidateNotAnnouncedTwice(t *testing.T) {
	d := detect.New()

	// A brand-new source key that already pairs with an operator item
	// becomes an actionable candidate; the informational notice would be
	// redundant.
	source := map[catalog.Key]catalog.Item{
		"frost blade|premium": sourceItem("Frost Blade", 50.00),
	}
	operator := map[catalog.Key]catalog.Item{
		"frost blade|premium": operatorItem("Frost Blade", 60.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard": {Name: "Widget", Price: 10.00},
	}

	result := d.Prices(source, operator, snap, nil, nil)

	require.Len(t, result.Candidates, 1)
	assert.Empty(t, result.NewListings)
}

func TestRemovedListingNotice(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"widget|standard": sourceItem("Widget", 10.00),
	}
	snap := snapshot.Snapshot{
		"widget|standard":     {Name: "Widget", Price: 10.00},
		"frost blade|premium": {Name: "Frost Blade", Price: 55.00},
	}

	result := d.Prices(source, map[catalog.Key]catalog.Item{}, snap, nil, nil)

	require.Len(t, result.RemovedListings, 1)
	r := result.RemovedListings[0]
	assert.Equal(t, catalog.Key("frost blade|premium"), r.Key)
	assert.Equal(t, "Frost Blade", r.Name)
	assert.Equal(t, 55.00, r.LastPrice)
}

func TestCandidatesSortedByKey(t *testing.T) {
	d := detect.New()

	source := map[catalog.Key]catalog.Item{
		"zebra|standard": sourceItem("Zebra", 9.00),
		"apple|standard": sourceItem("Apple", 4.00),
	}
	operator := map[catalog.Key]catalog.Item{
		"zebra|standard": operatorItem("Zebra", 10.00),
		"apple|standard": operatorItem("Apple", 5.00),
	}
	snap := snapshot.Snapshot{
		"zebra|standard": {Name: "Zebra", Price: 10.00},
		"apple|standard": {Name: "Apple", Price: 5.00},
	}

	result := d.Prices(source, operator, snap, nil, nil)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, catalog.Key("apple|standard"), result.Candidates[0].Key)
	assert.Equal(t, catalog.Key("zebra|standard"), result.Candidates[1].Key)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	t.Run("undercut fraction", func(t *testing.T) {
		d := detect.New(detect.WithUndercut(0.05))

		source := map[catalog.Key]catalog.Item{
			"widget|standard": sourceItem("Widget", 10.00),
		}
		operator := map[catalog.Key]catalog.Item{
			"widget|standard": operatorItem("Widget", 12.00),
		}
		snap := snapshot.Snapshot{
			"widget|standard": {Name: "Widget", Price: 12.00},
		}

		result := d.Prices(source, operator, snap, nil, nil)
		require.Len(t, result.Candidates, 1)
		assert.InDelta(t, 9.50, result.Candidates[0].Proposed, 1e-9)
	})

	t.Run("raise threshold", func(t *testing.T) {
		d := detect.New(detect.WithRaiseThreshold(0.50))

		source := map[catalog.Key]catalog.Item{
			"widget|standard": sourceItem("Widget", 13.00),
		}
		operator := map[catalog.Key]catalog.Item{
			"widget|standard": operatorItem("Widget", 10.00),
		}
		snap := snapshot.Snapshot{
			"widget|standard": {Name: "Widget", Price: 12.00},
		}

		// 30% above operator no longer clears the 50% threshold.
		result := d.Prices(source, operator, snap, nil, nil)
		assert.Empty(t, result.Candidates)
	})
}
