package server

import (
	"fmt"
	"time"
)

// Config holds webhook server configuration.
type Config struct {
	// Listen address
	Host string
	Port int

	// PublicKey is the hex-encoded Ed25519 verification key the chat
	// platform issued for this application.
	PublicKey string

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults. The public key
// has no default; the server refuses to start without one.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
