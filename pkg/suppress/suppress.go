// Package suppress tracks time-windowed re-alert suppression per item key.
// A key enters the registry when a reviewer declines a proposal or snoozes
// a stock-out; while the window is open the detector raises nothing for
// that key. Expired entries are evicted lazily on lookup and on save.
package suppress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/docstore"
)

// Reasons a key can be suppressed. Stored with the entry so operators can
// tell a declined proposal from a snoozed stock alert when inspecting state.
const (
	ReasonDeclined = "declined"
	ReasonSnoozed  = "stock_snoozed"
)

// Entry is one suppression window.
type Entry struct {
	Until  time.Time `json:"until"`
	Reason string    `json:"reason,omitempty"`
}

// Registry holds the active suppression windows. Safe for concurrent use
// by the reconciliation cycle and the interaction handlers.
type Registry struct {
	mu      sync.Mutex
	entries map[catalog.Key]Entry
	window  time.Duration
}

// New creates an empty registry with the given window. A zero window falls
// back to the default.
func New(window time.Duration) *Registry {
	if window <= 0 {
		window = constants.DefaultSuppressionWindow
	}
	return &Registry{
		entries: make(map[catalog.Key]Entry),
		window:  window,
	}
}

// Load reads the persisted registry. An absent document yields an empty one.
func Load(ctx context.Context, docs docstore.Store, window time.Duration) (*Registry, error) {
	r := New(window)
	if _, err := docstore.GetJSON(ctx, docs, docstore.SlotSuppressions, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Save evicts expired entries and persists the registry.
func (r *Registry) Save(ctx context.Context, docs docstore.Store) error {
	r.mu.Lock()
	r.evictLocked(time.Now())
	r.mu.Unlock()
	return docstore.PutJSON(ctx, docs, docstore.SlotSuppressions, r)
}

// Suppress opens a window for key starting now and returns its end.
// Suppressing an already suppressed key restarts the window.
func (r *Registry) Suppress(key catalog.Key, reason string) time.Time {
	until := time.Now().Add(r.window)
	r.SuppressUntil(key, until, reason)
	return until
}

// SuppressUntil opens a window for key with an explicit end time.
func (r *Registry) SuppressUntil(key catalog.Key, until time.Time, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = Entry{Until: until, Reason: reason}
}

// Suppressed reports whether key is inside an open window. An expired
// entry is evicted on the way out.
func (r *Registry) Suppressed(key catalog.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(entry.Until) {
		delete(r.entries, key)
		return false
	}
	return true
}

// Lift removes a key's window regardless of expiry.
func (r *Registry) Lift(key catalog.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// ActiveCount returns the number of open windows.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(time.Now())
	return len(r.entries)
}

// Window returns the configured suppression duration.
func (r *Registry) Window() time.Duration {
	return r.window
}

// evictLocked drops expired entries. Callers hold r.mu.
func (r *Registry) evictLocked(now time.Time) {
	for key, entry := range r.entries {
		if now.After(entry.Until) {
			delete(r.entries, key)
		}
	}
}

// MarshalJSON serializes just the entry map; the window is configuration,
// not state.
func (r *Registry) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Marshal(r.entries)
}

// UnmarshalJSON replaces the entry map from a persisted document.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var entries map[catalog.Key]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if entries == nil {
		entries = make(map[catalog.Key]Entry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = entries
	return nil
}
