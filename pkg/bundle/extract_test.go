package bundle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/catalog"
)

func TestExtractNamesIncludesSection(t *testing.T) {
	description := "A complete loadout for new players.\n" +
		"Includes:\n" +
		"- Frost Blade (sword)\n" +
		"- Ember Shield (shield)\n" +
		"* Oak Bow\n" +
		"\n" +
		"Ships within two days."

	names := bundle.ExtractNames(description, 8)
	assert.Equal(t, []string{"Frost Blade", "Ember Shield", "Oak Bow"}, names)
}

func TestExtractNamesWithClause(t *testing.T) {
	description := "A great starter kit with Frost Blade, Ember Shield and Oak Bow. Ships fast."

	names := bundle.ExtractNames(description, 8)
	assert.Equal(t, []string{"Frost Blade", "Ember Shield", "Oak Bow"}, names)
}

func TestExtractNamesInlineIncludes(t *testing.T) {
	description := "This kit includes Frost Blade, Ember Shield & Oak Bow!"

	names := bundle.ExtractNames(description, 8)
	assert.Equal(t, []string{"Frost Blade", "Ember Shield", "Oak Bow"}, names)
}

func TestExtractNamesSectionBeatsClause(t *testing.T) {
	description := "Comes with extra padding for shipping.\n" +
		"Includes:\n" +
		"- Frost Blade\n"

	names := bundle.ExtractNames(description, 8)
	assert.Equal(t, []string{"Frost Blade"}, names)
}

func TestExtractNamesCapped(t *testing.T) {
	description := "Includes:\nA\nB\nC\nD\nE\n"

	names := bundle.ExtractNames(description, 3)
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestExtractNamesNoPattern(t *testing.T) {
	assert.Nil(t, bundle.ExtractNames("Just a lovely product.", 8))
	assert.Nil(t, bundle.ExtractNames("", 8))
}

func TestMatchConstituents(t *testing.T) {
	operator := map[catalog.Key]catalog.Item{
		"frost blade|standard": {Name: "Frost Blade", ProductID: 1, VariantID: 101},
		"ember shield|standard": {
			Name: "Ember Shield", ProductID: 2, VariantID: 102,
		},
		"starter set|standard": {Name: "Starter Set", ProductID: 9, VariantID: 900},
	}

	got := bundle.MatchConstituents(
		[]string{"Frost Blade", "Ember Shield", "Phantom Dagger"},
		operator,
		9,
	)

	require.Len(t, got, 2)
	assert.Equal(t, bundle.Constituent{Name: "Frost Blade", VariantID: 101}, got[0])
	assert.Equal(t, bundle.Constituent{Name: "Ember Shield", VariantID: 102}, got[1])
}

func TestMatchConstituentsBidirectional(t *testing.T) {
	operator := map[catalog.Key]catalog.Item{
		"frost blade|standard": {Name: "Frost Blade", ProductID: 1, VariantID: 101},
	}

	// Extracted name longer than the catalog title still matches.
	got := bundle.MatchConstituents([]string{"Frost Blade of the North"}, operator, 9)
	require.Len(t, got, 1)
	assert.Equal(t, int64(101), got[0].VariantID)

	// And shorter than the title.
	got = bundle.MatchConstituents([]string{"Frost"}, operator, 9)
	require.Len(t, got, 1)
}

func TestMatchConstituentsSkipsBundleItself(t *testing.T) {
	operator := map[catalog.Key]catalog.Item{
		"frost set|standard": {Name: "Frost Set", ProductID: 9, VariantID: 900},
	}

	got := bundle.MatchConstituents([]string{"Frost"}, operator, 9)
	assert.Empty(t, got)
}

func TestMatchConstituentsFirstMatchWins(t *testing.T) {
	operator := map[catalog.Key]catalog.Item{
		"blade mark i|standard":  {Name: "Blade Mark I", ProductID: 1, VariantID: 101},
		"blade mark ii|standard": {Name: "Blade Mark II", ProductID: 2, VariantID: 102},
	}

	// Both titles contain the needle; base-name order decides, so Mark I
	// wins even though its full key sorts after Mark II's (the variant
	// separator byte is greater than 'i').
	got := bundle.MatchConstituents([]string{"Blade"}, operator, 9)
	require.Len(t, got, 1)
	assert.Equal(t, int64(101), got[0].VariantID)
}

func TestMatchConstituentsVariantTieBreak(t *testing.T) {
	operator := map[catalog.Key]catalog.Item{
		"frost blade|standard": {Name: "Frost Blade", ProductID: 1, VariantID: 101},
		"frost blade|premium":  {Name: "Chroma Frost Blade", ProductID: 2, VariantID: 102},
	}

	// Same base name; the full key breaks the tie deterministically.
	got := bundle.MatchConstituents([]string{"Frost Blade"}, operator, 9)
	require.Len(t, got, 1)
	assert.Equal(t, int64(102), got[0].VariantID)
}
