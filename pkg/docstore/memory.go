package docstore

import (
	"context"
	"sync"
)

// Compile-time interface check to ensure proper implementation.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory store. It backs tests and one-shot CLI
// invocations that should not touch the data directory.
type MemStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{slots: make(map[string][]byte)}
}

// Get returns the stored document for slot.
func (s *MemStore) Get(_ context.Context, slot string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.slots[slot]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

// Put stores a copy of data under slot.
func (s *MemStore) Put(_ context.Context, slot string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.slots[slot] = cp
	return nil
}

// Delete removes a slot. Used by tests to simulate absent documents.
func (s *MemStore) Delete(slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slot)
}
