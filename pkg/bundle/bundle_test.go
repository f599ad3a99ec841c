package bundle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/docstore"
	"github.com/driftwatch/driftwatch/pkg/errors"
)

// operatorFixture returns a small storefront with one bundle product and
// its two constituents.
func operatorFixture() map[catalog.Key]catalog.Item {
	return map[catalog.Key]catalog.Item{
		"starter set|standard": {
			Name:      "Starter Set",
			Price:     12.00,
			ProductID: 8821,
			VariantID: 44210,
			Description: "Everything a new player needs.\n" +
				"Includes:\n" +
				"- Frost Blade\n" +
				"- Ember Shield\n",
		},
		"frost blade|standard": {
			Name: "Frost Blade", Price: 5.25, ProductID: 8801, VariantID: 44100,
		},
		"ember shield|standard": {
			Name: "Ember Shield", Price: 5.25, ProductID: 8802, VariantID: 44101,
		},
	}
}

func TestScanDetectsBundleOnce(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	detected := r.Scan(ctx, operatorFixture())
	require.Len(t, detected, 1)

	pc := detected[0]
	assert.NotEmpty(t, pc.ApprovalID)
	assert.Equal(t, int64(8821), pc.ProductID)
	assert.Equal(t, int64(44210), pc.VariantID)
	require.Len(t, pc.Constituents, 2)
	assert.Equal(t, int64(44100), pc.Constituents[0].VariantID)
	assert.Equal(t, int64(44101), pc.Constituents[1].VariantID)

	// Already pending: the next cycle does not raise a duplicate.
	assert.Empty(t, r.Scan(ctx, operatorFixture()))
}

func TestScanIgnoresUnmarkedNames(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	operator := map[catalog.Key]catalog.Item{
		"sunset blade|standard": {
			Name: "Sunset Blade", Price: 9.00, ProductID: 1, VariantID: 10,
			Description: "Includes a display stand.",
		},
	}

	// "Sunset" contains the letters of a marker but is not the token.
	assert.Empty(t, r.Scan(ctx, operator))
}

func TestScanSkipsWhenNothingMatches(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	operator := map[catalog.Key]catalog.Item{
		"mystery set|standard": {
			Name: "Mystery Set", Price: 20.00, ProductID: 5, VariantID: 50,
			Description: "Includes:\n- Something We Never Sold\n",
		},
	}

	assert.Empty(t, r.Scan(ctx, operator))
}

func TestConfirmPromotesComposition(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	detected := r.Scan(ctx, operatorFixture())
	require.Len(t, detected, 1)

	comp, err := r.Confirm(ctx, detected[0].ApprovalID, approval.Actor{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []int64{44100, 44101}, comp.VariantIDs)

	confirmed := r.Confirmed()
	require.Len(t, confirmed, 1)
	assert.Equal(t, int64(8821), confirmed[0].ProductID)
	assert.Empty(t, r.PendingConfirmations())

	// Redelivered click resolves to NotFound, not a second promotion.
	_, err = r.Confirm(ctx, detected[0].ApprovalID, approval.Actor{ID: "u1"})
	assert.True(t, errors.IsNotFound(err))

	// Confirmed products are not re-detected.
	assert.Empty(t, r.Scan(ctx, operatorFixture()))
}

func TestDeclineParksForManualEntry(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	detected := r.Scan(ctx, operatorFixture())
	require.Len(t, detected, 1)

	_, err := r.Decline(ctx, detected[0].ApprovalID, approval.Actor{ID: "u1"})
	require.NoError(t, err)

	assert.Empty(t, r.Confirmed())
	assert.Equal(t, map[int64]string{8821: "Starter Set"}, r.AwaitingManual())

	// Parked products wait for an overrides entry instead of re-alerting.
	assert.Empty(t, r.Scan(ctx, operatorFixture()))
}

func TestConfirmForbiddenWithoutRole(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore(),
		bundle.WithGate(approval.Gate{Roles: []string{"pricing"}}),
	)

	detected := r.Scan(ctx, operatorFixture())
	require.Len(t, detected, 1)

	_, err := r.Confirm(ctx, detected[0].ApprovalID, approval.Actor{ID: "u1", Roles: []string{"viewer"}})
	assert.True(t, errors.IsForbidden(err))
	assert.Len(t, r.PendingConfirmations(), 1)
}

func TestVerifyRaisesMismatch(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	require.NoError(t, r.SetComposition(ctx, bundle.Composition{
		ProductID:  8821,
		VariantID:  44210,
		Name:       "Starter Set",
		VariantIDs: []int64{44100, 44101},
	}))

	// Constituents sum to 10.50 against a 12.00 bundle price.
	result := r.Verify(ctx, operatorFixture())

	assert.Equal(t, 1, result.Checked)
	assert.Empty(t, result.Missing)
	require.Len(t, result.Mismatches, 1)

	c := result.Mismatches[0]
	assert.Equal(t, detect.KindBundleFix, c.Kind)
	assert.Equal(t, catalog.Key("starter set|standard"), c.Key)
	assert.Equal(t, 12.00, c.OperatorPrice)
	assert.InDelta(t, 10.50, c.Proposed, 1e-9)
	assert.Equal(t, int64(44210), c.VariantID)
}

func TestVerifyWithinTolerance(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	operator := operatorFixture()
	item := operator["starter set|standard"]
	item.Price = 10.52
	operator["starter set|standard"] = item

	require.NoError(t, r.SetComposition(ctx, bundle.Composition{
		ProductID:  8821,
		VariantID:  44210,
		Name:       "Starter Set",
		VariantIDs: []int64{44100, 44101},
	}))

	result := r.Verify(ctx, operator)
	assert.Equal(t, 1, result.Checked)
	assert.Empty(t, result.Mismatches)
}

func TestVerifyAlarmsMissingConstituent(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	require.NoError(t, r.SetComposition(ctx, bundle.Composition{
		ProductID:  8821,
		VariantID:  44210,
		Name:       "Starter Set",
		VariantIDs: []int64{44100, 99999},
	}))

	result := r.Verify(ctx, operatorFixture())

	require.Len(t, result.Missing, 1)
	assert.Equal(t, int64(99999), result.Missing[0].VariantID)
	assert.Equal(t, int64(8821), result.Missing[0].BundleProductID)

	// The price check proceeds on the remaining constituent.
	require.Len(t, result.Mismatches, 1)
	assert.InDelta(t, 5.25, result.Mismatches[0].Proposed, 1e-9)
}

func TestVerifySkipsWhenAllConstituentsMissing(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	require.NoError(t, r.SetComposition(ctx, bundle.Composition{
		ProductID:  8821,
		VariantID:  44210,
		Name:       "Starter Set",
		VariantIDs: []int64{99998, 99999},
	}))

	result := r.Verify(ctx, operatorFixture())

	assert.Equal(t, 0, result.Checked)
	assert.Empty(t, result.Mismatches)
	assert.Len(t, result.Missing, 2)
}

func TestResetForgetsProduct(t *testing.T) {
	ctx := context.Background()
	r := bundle.New(docstore.NewMemStore())

	require.NoError(t, r.SetComposition(ctx, bundle.Composition{
		ProductID:  8821,
		VariantID:  44210,
		Name:       "Starter Set",
		VariantIDs: []int64{44100},
	}))

	require.NoError(t, r.Reset(ctx, 8821))
	assert.Empty(t, r.Confirmed())

	// The product is eligible for detection again.
	assert.Len(t, r.Scan(ctx, operatorFixture()), 1)

	err := r.Reset(ctx, 12345)
	assert.True(t, errors.IsNotFound(err))
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore()

	r := bundle.New(docs)
	detected := r.Scan(ctx, operatorFixture())
	require.Len(t, detected, 1)
	_, err := r.Confirm(ctx, detected[0].ApprovalID, approval.Actor{ID: "u1"})
	require.NoError(t, err)

	restarted := bundle.New(docs)
	require.NoError(t, restarted.Load(ctx))

	confirmed := restarted.Confirmed()
	require.Len(t, confirmed, 1)
	assert.Equal(t, []int64{44100, 44101}, confirmed[0].VariantIDs)
}

func TestLoadMergesOverridesFile(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "bundles.yaml")
	contents := "bundles:\n" +
		"  - product_id: 7001\n" +
		"    variant_id: 70010\n" +
		"    name: \"Travel Bundle\"\n" +
		"    variant_ids: [70100, 70101]\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	r := bundle.New(docstore.NewMemStore(), bundle.WithOverridesPath(path))
	require.NoError(t, r.Load(ctx))

	confirmed := r.Confirmed()
	require.Len(t, confirmed, 1)
	assert.Equal(t, int64(7001), confirmed[0].ProductID)
	assert.Equal(t, []int64{70100, 70101}, confirmed[0].VariantIDs)
}

func TestLoadOverridesMissingFile(t *testing.T) {
	comps, err := bundle.LoadOverrides(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, comps)
}

func TestLoadOverridesRejectsIncompleteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.yaml")
	contents := "bundles:\n  - name: \"No IDs\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := bundle.LoadOverrides(path)
	require.Error(t, err)
}
