package docstore

import (
	"context"
	"io"

	"github.com/driftwatch/driftwatch/pkg/logging"
)

// Compile-time interface check to ensure proper implementation.
var _ Store = (*Tiered)(nil)

// Tiered layers an optional remote store over the local store. Reads prefer
// the remote and fall back to local on any remote failure or absence; writes
// go to the remote best-effort and to the local store unconditionally. Only
// local failures propagate, since there is no further fallback.
type Tiered struct {
	remote Store // nil when no remote is configured
	local  Store
}

// NewTiered combines a remote store (may be nil) with a required local store.
func NewTiered(remote, local Store) *Tiered {
	return &Tiered{remote: remote, local: local}
}

// Get reads slot from the remote tier first, then the local tier.
func (t *Tiered) Get(ctx context.Context, slot string) ([]byte, bool, error) {
	if t.remote != nil {
		data, ok, err := t.remote.Get(ctx, slot)
		if err == nil && ok {
			return data, true, nil
		}
		if err != nil {
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("slot", slot).
				Msg("Remote store read failed, falling back to file")
		}
	}
	return t.local.Get(ctx, slot)
}

// Put writes slot to both tiers. Remote failures are swallowed after
// logging; the local write decides the outcome.
func (t *Tiered) Put(ctx context.Context, slot string, data []byte) error {
	if t.remote != nil {
		if err := t.remote.Put(ctx, slot, data); err != nil {
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("slot", slot).
				Msg("Remote store write failed, file copy still written")
		}
	}
	return t.local.Put(ctx, slot, data)
}

// HasRemote reports whether a remote tier is configured.
func (t *Tiered) HasRemote() bool {
	return t.remote != nil
}

// Close closes whichever tiers hold resources.
func (t *Tiered) Close() error {
	var firstErr error
	for _, s := range []Store{t.remote, t.local} {
		if c, ok := s.(io.Closer); ok && c != nil {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
