package middleware

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/driftwatch/driftwatch/internal/server/response"
)

// Headers the chat platform signs interaction callbacks with.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// maxInteractionBody bounds how much of a callback payload is read for
// verification.
const maxInteractionBody = 1 << 20

// Signature verifies the Ed25519 signature carried on every interaction
// callback. The signed message is the timestamp header concatenated with
// the raw body; requests that do not verify are rejected with 401 and
// never reach the handler. The verified body is restored for re-reading.
func Signature(key ed25519.PublicKey, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig, err := hex.DecodeString(r.Header.Get(HeaderSignature))
			if err != nil || len(sig) != ed25519.SignatureSize {
				logger.Warn().
					Str("remote_addr", r.RemoteAddr).
					Msg("Interaction signature missing or malformed")
				response.Unauthorized(w, "invalid request signature")
				return
			}

			timestamp := r.Header.Get(HeaderTimestamp)
			if timestamp == "" {
				response.Unauthorized(w, "invalid request signature")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxInteractionBody))
			if err != nil {
				response.Unauthorized(w, "invalid request signature")
				return
			}

			if !ed25519.Verify(key, append([]byte(timestamp), body...), sig) {
				logger.Warn().
					Str("remote_addr", r.RemoteAddr).
					Msg("Interaction signature rejected")
				response.Unauthorized(w, "invalid request signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
