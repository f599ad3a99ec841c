// Package shopfront talks to the operator storefront's Admin API: paged
// product reads for reconciliation and the variant price write that an
// approved action triggers. Product titles embed the premium finish as a
// marker token, which is split off here so both catalogs key identically.
package shopfront

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/driftwatch/driftwatch/internal/transport"
	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// accessTokenHeader carries the Admin API token.
const accessTokenHeader = "X-Access-Token"

// productsResponse is one page of the product listing endpoint.
type productsResponse struct {
	Products []wireProduct `json:"products"`
}

type wireProduct struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	BodyHTML string        `json:"body_html"`
	Image    *wireImage    `json:"image"`
	Variants []wireVariant `json:"variants"`
}

type wireImage struct {
	Src string `json:"src"`
}

// wireVariant is a sellable variant. The Admin API serves prices as
// strings.
type wireVariant struct {
	ID                int64  `json:"id"`
	Price             string `json:"price"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

// variantUpdate is the price mutation payload.
type variantUpdate struct {
	Variant struct {
		ID    int64  `json:"id"`
		Price string `json:"price"`
	} `json:"variant"`
}

// Client reads and mutates the operator storefront.
type Client struct {
	client  *transport.Client
	baseURL string

	pageSize int
	maxPages int
	marker   string
}

// New creates a storefront client for the given Admin API base URL,
// authenticating every request with the access token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		client: transport.New(
			&transport.HeaderAuth{Header: accessTokenHeader},
			token,
			transport.WithTimeout(constants.FetchTimeout),
		),
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: constants.ShopfrontPageSize,
		maxPages: constants.ShopfrontMaxPages,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves the full storefront catalog, keyed canonically. Paging
// stops on an empty page or at the page cap. A failed page ends the walk
// with the pages fetched so far; a mid-sequence hole would read as
// removed products downstream.
func (c *Client) Fetch(ctx context.Context) (map[catalog.Key]catalog.Item, error) {
	items := make(map[catalog.Key]catalog.Item)

	for page := 1; page <= c.maxPages; page++ {
		products, err := c.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Ctx(ctx).Warn().
				Err(err).
				Int("page", page).
				Msg("Storefront page fetch failed, keeping partial catalog")
			break
		}
		if len(products) == 0 {
			break
		}

		for _, product := range products {
			c.collect(ctx, items, product)
		}
	}

	logging.Ctx(ctx).Debug().
		Int("items", len(items)).
		Msg("Storefront fetch complete")
	return items, nil
}

// UpdatePrice writes a new price to a variant. Any transport or status
// failure surfaces as a MutationError so the pending entry stays put for
// a retry.
func (c *Client) UpdatePrice(ctx context.Context, variantID int64, price float64) error {
	if variantID == 0 {
		return &errors.ValidationError{Field: "variant_id", Message: "no variant id for price update"}
	}

	var body variantUpdate
	body.Variant.ID = variantID
	body.Variant.Price = strconv.FormatFloat(price, 'f', 2, 64)

	url := fmt.Sprintf("%s/variants/%d.json", c.baseURL, variantID)
	if err := c.client.PutJSON(ctx, url, body, nil); err != nil {
		if httpErr, ok := transport.AsHTTPError(err); ok {
			return &errors.MutationError{VariantID: variantID, StatusCode: httpErr.StatusCode, Err: err}
		}
		return &errors.MutationError{VariantID: variantID, Err: err}
	}

	logging.Ctx(ctx).Info().
		Int64("variant_id", variantID).
		Float64("price", price).
		Msg("Variant price updated")
	return nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]wireProduct, error) {
	url := fmt.Sprintf("%s/products.json?limit=%d&page=%d", c.baseURL, c.pageSize, page)

	var resp productsResponse
	if err := c.client.GetJSON(ctx, url, &resp); err != nil {
		if httpErr, ok := transport.AsHTTPError(err); ok {
			return nil, errors.NewFetchError("shopfront", page, httpErr.StatusCode, err)
		}
		return nil, errors.WrapFetch("shopfront", page, err)
	}
	return resp.Products, nil
}

// collect converts one product into a keyed item. Products without a
// sellable variant or with an unusable title are dropped.
func (c *Client) collect(ctx context.Context, items map[catalog.Key]catalog.Item, product wireProduct) {
	if len(product.Variants) == 0 {
		return
	}
	variant := product.Variants[0]

	price, err := strconv.ParseFloat(variant.Price, 64)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Int64("product_id", product.ID).
			Str("price", variant.Price).
			Msg("Skipping product with unparsable price")
		return
	}

	base, finish := catalog.SplitTitle(product.Title, c.marker)
	key, err := catalog.NewKey(base, finish)
	if err != nil {
		logging.Ctx(ctx).Debug().
			Int64("product_id", product.ID).
			Msg("Skipping product with unusable title")
		return
	}

	item := catalog.Item{
		Name:        strings.TrimSpace(product.Title),
		Price:       price,
		Variant:     finish,
		VariantID:   variant.ID,
		ProductID:   product.ID,
		Quantity:    variant.InventoryQuantity,
		Description: stripHTML(product.BodyHTML),
	}
	if product.Image != nil {
		item.ImageURL = product.Image.Src
	}
	items[key] = item
}

// stripHTML reduces a storefront HTML description to plain text: line
// breaks become newlines, tags drop out, entities unescape.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}

	s = strings.NewReplacer(
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
		"</p>", "\n",
		"</li>", "\n",
		"</ul>", "\n",
	).Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(html.UnescapeString(b.String()))
}
