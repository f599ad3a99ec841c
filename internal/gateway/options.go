package gateway

import "time"

// Option configures a Gateway.
type Option func(*Gateway)

// WithURL overrides the gateway endpoint. Tests point this at a local
// websocket server.
func WithURL(url string) Option {
	return func(g *Gateway) {
		g.url = url
	}
}

// WithAdminID sets the user allowed to issue bulk commands. Without
// it every command is ignored.
func WithAdminID(id string) Option {
	return func(g *Gateway) {
		g.adminID = id
	}
}

// WithBackoff overrides the reconnect delays.
func WithBackoff(base, max time.Duration) Option {
	return func(g *Gateway) {
		g.backoffBase = base
		g.backoffMax = max
	}
}
