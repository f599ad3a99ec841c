package transport

import "net/http"

// Authenticator applies authentication to outbound requests.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// NoAuth leaves requests unauthenticated. The source marketplace search
// API is public.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth sets an Authorization header. Prefix defaults to "Bearer";
// the chat platform wants "Bot".
type BearerAuth struct {
	Prefix string
}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, token string) {
	prefix := a.Prefix
	if prefix == "" {
		prefix = "Bearer"
	}
	req.Header.Set("Authorization", prefix+" "+token)
}

// HeaderAuth puts the token in a custom header. The storefront Admin API
// authenticates with an access-token header.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, token string) {
	req.Header.Set(a.Header, token)
}
