package notify

import (
	"golang.org/x/time/rate"

	"github.com/driftwatch/driftwatch/internal/transport"
)

// Option configures a Notifier.
type Option func(*Notifier)

// WithAPIURL overrides the platform API base URL.
func WithAPIURL(url string) Option {
	return func(n *Notifier) {
		if url != "" {
			n.apiURL = url
		}
	}
}

// WithChannel sets the default review channel id.
func WithChannel(id string) Option {
	return func(n *Notifier) {
		n.channel = id
	}
}

// WithRoleID sets the role mentioned on actionable messages.
func WithRoleID(id string) Option {
	return func(n *Notifier) {
		n.roleID = id
	}
}

// WithRateLimit overrides the outbound message rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(n *Notifier) {
		if perSecond > 0 && burst > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithTransport replaces the HTTP client, mainly for tests.
func WithTransport(client *transport.Client) Option {
	return func(n *Notifier) {
		n.client = client
	}
}
