package types

import "time"

// type of change event captured from the record table's stream
type EventType uint

const (
	EventTypeInsert EventType = iota + 1
	EventTypeModify
	EventTypeRemove
)

func (t EventType) String() string {
	switch t {
	case EventTypeInsert:
		return "INSERT"
	case EventTypeModify:
		return "MODIFY"
	case EventTypeRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// one captured mutation of a lock record
// delivered in commit order within a shard, at least once
// duplicates are possible, so handling must be idempotent
type ChangeEvent struct {
	Type           EventType
	LockID         string
	ShardID        string
	SequenceNumber string // monotonic per shard, used for resuming
	CreatedAt      time.Time
	OldImage       *LockRecord // snapshot before the mutation, if captured
	NewImage       *LockRecord // snapshot after the mutation, if captured
}

// how long the event has been sitting in the stream
func (e *ChangeEvent) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
