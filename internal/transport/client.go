// Package transport is the thin HTTP layer shared by the catalog clients
// and the notifier. It owns authentication, common headers, timeouts, and
// JSON decoding so callers deal only in typed payloads.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/driftwatch/driftwatch/pkg/constants"
)

// Client wraps an http.Client with authentication and JSON conventions.
type Client struct {
	http      *http.Client
	auth      Authenticator
	token     string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates a transport client. The token is handed to the
// authenticator on every request; pass an empty token with NoAuth for
// public endpoints.
func New(auth Authenticator, token string, opts ...Option) *Client {
	c := &Client{
		http:  &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:  auth,
		token: token,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do applies authentication and common headers, then executes the
// request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.auth != nil && c.token != "" {
		c.auth.Apply(req, c.token)
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	return c.http.Do(req)
}

// GetJSON issues a GET and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, target)
}

// PostJSON issues a POST with a JSON body and decodes the response into
// target. A nil target discards the response body.
func (c *Client) PostJSON(ctx context.Context, url string, body, target any) error {
	return c.sendJSON(ctx, http.MethodPost, url, body, target)
}

// PutJSON issues a PUT with a JSON body and decodes the response into
// target.
func (c *Client) PutJSON(ctx context.Context, url string, body, target any) error {
	return c.sendJSON(ctx, http.MethodPut, url, body, target)
}

// PatchJSON issues a PATCH with a JSON body and decodes the response
// into target.
func (c *Client) PatchJSON(ctx context.Context, url string, body, target any) error {
	return c.sendJSON(ctx, http.MethodPatch, url, body, target)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, body, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, target)
}
