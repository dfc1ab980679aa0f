package deadletter

import (
	"context"
	"sync"

	"github.com/pixperk/lockttl/pkg/types"
)

// Sink is the failure sink: durable, append-only, at-least-once.
// Entries carry the original event verbatim plus the failure reason.
type Sink interface {
	Enqueue(ctx context.Context, entry types.DeadLetterEntry) error
}

// MemorySink collects entries in memory for tests and local runs.
type MemorySink struct {
	mu      sync.Mutex
	entries []types.DeadLetterEntry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Enqueue(_ context.Context, entry types.DeadLetterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemorySink) Entries() []types.DeadLetterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.DeadLetterEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
