package stream

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/pixperk/lockttl/pkg/types"
)

// MemoryStream is an in-process ChangeStream for tests and local runs.
// Each shard is an append-only slice; sequence numbers are per-shard counters.
// Unlike the DynamoDB implementation, an empty position reads from the start
// of the shard so tests observe every appended event.
type MemoryStream struct {
	mu     sync.Mutex
	shards map[string][]types.ChangeEvent
	order  []string // shard ids in creation order, for deterministic Shards()
}

func NewMemoryStream() *MemoryStream {
	return &MemoryStream{shards: make(map[string][]types.ChangeEvent)}
}

// Append adds an event to the shard, assigning its sequence number.
func (s *MemoryStream) Append(shardID string, ev types.ChangeEvent) types.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shards[shardID]; !ok {
		s.order = append(s.order, shardID)
	}
	ev.ShardID = shardID
	ev.SequenceNumber = strconv.Itoa(len(s.shards[shardID]) + 1)
	s.shards[shardID] = append(s.shards[shardID], ev)
	return ev
}

func (s *MemoryStream) Shards(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *MemoryStream) Read(_ context.Context, shardID, position string, limit int) ([]types.ChangeEvent, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.shards[shardID]
	if !ok {
		return nil, position, fmt.Errorf("%w: %s", types.ErrShardNotFound, shardID)
	}

	start := 0
	if position != "" {
		n, err := strconv.Atoi(position)
		if err != nil {
			return nil, position, fmt.Errorf("bad position %q: %w", position, err)
		}
		start = n
	}
	if start >= len(log) {
		return nil, position, nil
	}

	end := start + limit
	if end > len(log) {
		end = len(log)
	}
	events := make([]types.ChangeEvent, end-start)
	copy(events, log[start:end])
	return events, events[len(events)-1].SequenceNumber, nil
}
