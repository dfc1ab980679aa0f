package types

import "errors"

var (
	// Record errors
	ErrRecordAgeExceeded = errors.New("maximum record age exceeded")
	ErrRetriesExhausted  = errors.New("retry attempts exhausted")

	// Event errors
	ErrUnknownEventType = errors.New("unknown event type")

	// Stream errors
	ErrShardNotFound = errors.New("shard not found")
	ErrShardClosed   = errors.New("shard is closed")
)
