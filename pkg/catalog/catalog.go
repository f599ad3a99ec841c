// Package catalog defines the listing model shared by the two catalog
// clients and the canonical key scheme used to associate the same logical
// item across them. Keys are deterministic and derived purely from the
// listing name and variant, so two independently fetched catalogs agree on
// identity without any shared state.
package catalog

// Variant distinguishes the two finishes an item can be listed under.
// The source catalog flags the premium finish explicitly; the operator
// storefront embeds a marker token in the product title instead.
type Variant string

const (
	// VariantStandard is the unmarked finish.
	VariantStandard Variant = "standard"

	// VariantPremium is the marked finish.
	VariantPremium Variant = "premium"
)

// Item is one listing from either catalog, reduced to the fields the
// reconciliation pipeline touches. Fields only one side provides are left
// zero by the other side's client.
type Item struct {
	// Name is the display name as listed.
	Name string

	// Price is the listed price in the operating currency.
	Price float64

	// Variant is the finish classification.
	Variant Variant

	// Grade is the source-side quality tier (filtering happens at fetch time).
	Grade string

	// ListingID identifies the listing on the source marketplace.
	ListingID string

	// VariantID identifies the sellable variant on the operator storefront.
	VariantID int64

	// ProductID identifies the product on the operator storefront.
	ProductID int64

	// Quantity is the operator-side stock level for the variant.
	Quantity int

	// ImageURL is an optional product image.
	ImageURL string

	// Description is the operator-side free-text product description,
	// already stripped of markup. Bundle extraction parses it.
	Description string
}
