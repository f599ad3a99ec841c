package market

import (
	"sort"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/transport"
)

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets how many listings one search page requests.
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

// WithPageDelay sets the polite pause between page requests.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.pageDelay = d
		}
	}
}

// WithGrades restricts the fetch to the given quality tiers,
// case-insensitively. Empty means every grade.
func WithGrades(grades ...string) Option {
	return func(c *Client) {
		c.grades = nil
		c.gradeSet = make(map[string]bool, len(grades))
		for _, grade := range grades {
			folded := strings.ToLower(strings.TrimSpace(grade))
			if folded == "" || c.gradeSet[folded] {
				continue
			}
			c.gradeSet[folded] = true
			c.grades = append(c.grades, folded)
		}
		sort.Strings(c.grades)
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
