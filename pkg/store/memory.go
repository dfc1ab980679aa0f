package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process RecordStore with the same conditional
// semantics as the DynamoDB implementation. Used by tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]int64 // lock id -> expiration; zero entries never stored
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]int64)}
}

func (s *MemoryStore) GetExpiration(_ context.Context, lockID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.records[lockID]
	return exp, ok, nil
}

func (s *MemoryStore) SetExpirationIfGreater(_ context.Context, lockID string, expiration int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[lockID]; ok && cur >= expiration {
		return false, nil
	}
	s.records[lockID] = expiration
	return true, nil
}

// Put seeds a record directly, the way an external lock client would.
func (s *MemoryStore) Put(lockID string, expiration int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[lockID] = expiration
}

// Delete removes a record, mimicking the storage layer's own TTL sweep.
func (s *MemoryStore) Delete(lockID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, lockID)
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
