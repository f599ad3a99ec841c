package shopfront

import "github.com/driftwatch/driftwatch/internal/transport"

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets how many products one page requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithMaxPages caps how many pages one fetch walks.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithPremiumMarker sets the title token that flags the premium finish.
// Empty means titles are taken verbatim as the standard finish.
func WithPremiumMarker(marker string) Option {
	return func(c *Client) {
		c.marker = marker
	}
}

// WithTransport replaces the HTTP client.
func WithTransport(t *transport.Client) Option {
	return func(c *Client) {
		if t != nil {
			c.client = t
		}
	}
}
