// Package docstore persists the pipeline's state documents under named
// slots with whole-document semantics: every mutation reads the full
// document, updates it in memory, and writes the full document back. There
// is no partial-update concurrency control; concurrent writers race and the
// last writer wins. The tiered policy layers an optional remote key-value
// service over a local file directory so state survives ephemeral
// filesystems without making the remote a hard dependency.
package docstore

import (
	"context"
	"encoding/json"

	"github.com/driftwatch/driftwatch/pkg/errors"
)

// Well-known document slots.
const (
	// SlotSnapshot holds the last-cycle source price record per item key.
	SlotSnapshot = "snapshot"

	// SlotSuppressions holds the active suppression windows.
	SlotSuppressions = "suppressions"

	// SlotPendingActions holds the approval workflow's pending entries.
	SlotPendingActions = "pending_actions"

	// SlotBundles holds confirmed bundle compositions and pending confirmations.
	SlotBundles = "bundles"

	// SlotStockState holds the last observed operator stock quantities.
	SlotStockState = "stock_state"
)

// Store reads and writes whole documents under named slots.
type Store interface {
	// Get returns the document stored under slot. ok is false when the
	// slot has never been written.
	Get(ctx context.Context, slot string) (data []byte, ok bool, err error)

	// Put replaces the document stored under slot.
	Put(ctx context.Context, slot string, data []byte) error
}

// GetJSON decodes the document under slot into v. Absent slots leave v
// untouched and report ok=false, which callers treat as "start empty".
func GetJSON(ctx context.Context, s Store, slot string, v any) (bool, error) {
	data, ok, err := s.Get(ctx, slot)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.WrapPersistence(slot, "decode", err)
	}
	return true, nil
}

// PutJSON encodes v and writes it under slot.
func PutJSON(ctx context.Context, s Store, slot string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapPersistence(slot, "encode", err)
	}
	return s.Put(ctx, slot, data)
}
