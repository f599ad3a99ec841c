// Package snapshot persists the per-key source price record from the end of
// the previous reconciliation cycle. The snapshot exists only to detect
// change: it is fully replaced after every successful cycle, never merged,
// and an empty snapshot means the next cycle seeds it without raising
// anything.
package snapshot

import (
	"context"

	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/docstore"
)

// Record is the last observed source listing for one key.
type Record struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Grade string  `json:"grade,omitempty"`
}

// Snapshot maps canonical keys to their last-cycle source record.
type Snapshot map[catalog.Key]Record

// Empty reports whether the snapshot has never been seeded.
func (s Snapshot) Empty() bool {
	return len(s) == 0
}

// Price returns the recorded source price for key and whether it was present.
func (s Snapshot) Price(key catalog.Key) (float64, bool) {
	rec, ok := s[key]
	return rec.Price, ok
}

// FromItems builds the replacement snapshot from a fetched source catalog.
func FromItems(items map[catalog.Key]catalog.Item) Snapshot {
	snap := make(Snapshot, len(items))
	for key, item := range items {
		snap[key] = Record{
			Name:  item.Name,
			Price: item.Price,
			Grade: item.Grade,
		}
	}
	return snap
}

// Store loads and saves the snapshot document.
type Store struct {
	docs docstore.Store
}

// NewStore creates a snapshot store over the given document store.
func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Load reads the snapshot. An absent document yields an empty snapshot,
// which triggers the first-run seeding rule downstream.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	snap := make(Snapshot)
	if _, err := docstore.GetJSON(ctx, s.docs, docstore.SlotSnapshot, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save replaces the persisted snapshot.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	return docstore.PutJSON(ctx, s.docs, docstore.SlotSnapshot, snap)
}
