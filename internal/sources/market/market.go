// Package market fetches the source marketplace catalog. The search API
// is public, POST-paged, and can list the same item more than once;
// duplicates collapse to the lowest price so the detector always compares
// against the best obtainable listing.
package market

import (
	"context"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/transport"
	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// pageRequest is the search API request body.
type pageRequest struct {
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Grades   []string `json:"grades,omitempty"`
}

// pageResponse is one page of search results.
type pageResponse struct {
	Listings []wireListing `json:"listings"`
	Total    int           `json:"total"`
}

// wireListing is one listing as the marketplace serves it. The premium
// finish is flagged explicitly rather than embedded in the name.
type wireListing struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Grade   string  `json:"grade"`
	Premium bool    `json:"premium"`
	Image   string  `json:"image,omitempty"`
}

// Client fetches the marketplace catalog page by page.
type Client struct {
	client    *transport.Client
	searchURL string

	pageSize  int
	maxPages  int
	pageDelay time.Duration
	grades    []string
	gradeSet  map[string]bool
}

// New creates a marketplace client for the given search endpoint.
func New(searchURL string, opts ...Option) *Client {
	c := &Client{
		client:    transport.New(&transport.NoAuth{}, "", transport.WithTimeout(constants.FetchTimeout)),
		searchURL: searchURL,
		pageSize:  constants.MarketPageSize,
		maxPages:  constants.MarketMaxPages,
		pageDelay: constants.PageDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves the full catalog, keyed canonically. Paging stops on an
// empty or undersized page or at the page cap. A failed page ends the
// walk: skipping it would leave a mid-sequence hole the detector reads as
// removed listings, so the pages fetched before the failure are kept and
// the rest are left for the next cycle.
func (c *Client) Fetch(ctx context.Context) (map[catalog.Key]catalog.Item, error) {
	items := make(map[catalog.Key]catalog.Item)

	for page := 1; page <= c.maxPages; page++ {
		listings, err := c.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Ctx(ctx).Warn().
				Err(err).
				Int("page", page).
				Msg("Marketplace page fetch failed, keeping partial catalog")
			break
		}

		for _, listing := range listings {
			c.collect(ctx, items, listing)
		}

		if len(listings) < c.pageSize {
			break
		}
		if page < c.maxPages {
			if err := sleep(ctx, c.pageDelay); err != nil {
				return nil, err
			}
		}
	}

	logging.Ctx(ctx).Debug().
		Int("items", len(items)).
		Msg("Marketplace fetch complete")
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]wireListing, error) {
	req := pageRequest{Page: page, PageSize: c.pageSize, Grades: c.grades}

	var resp pageResponse
	if err := c.client.PostJSON(ctx, c.searchURL, req, &resp); err != nil {
		if httpErr, ok := transport.AsHTTPError(err); ok {
			return nil, errors.NewFetchError("market", page, httpErr.StatusCode, err)
		}
		return nil, errors.WrapFetch("market", page, err)
	}
	return resp.Listings, nil
}

// collect converts a wire listing and folds it into the keyed map,
// keeping the lowest price per key. Listings outside the grade allow-list
// or with unusable names are dropped.
func (c *Client) collect(ctx context.Context, items map[catalog.Key]catalog.Item, listing wireListing) {
	if len(c.gradeSet) > 0 && !c.gradeSet[strings.ToLower(listing.Grade)] {
		return
	}

	variant := catalog.VariantStandard
	if listing.Premium {
		variant = catalog.VariantPremium
	}

	key, err := catalog.NewKey(listing.Name, variant)
	if err != nil {
		logging.Ctx(ctx).Debug().
			Str("listing_id", listing.ID).
			Msg("Skipping listing with unusable name")
		return
	}

	if existing, ok := items[key]; ok && existing.Price <= listing.Price {
		return
	}
	items[key] = catalog.Item{
		Name:      strings.TrimSpace(listing.Name),
		Price:     listing.Price,
		Variant:   variant,
		Grade:     listing.Grade,
		ListingID: listing.ID,
		ImageURL:  listing.Image,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
