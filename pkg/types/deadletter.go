package types

import "time"

// an event that could not be processed after exhausting retries
// carries the original event verbatim plus the failure reason for triage
// entries are append-only, never mutated
type DeadLetterEntry struct {
	ID        string
	Event     ChangeEvent
	Reason    string
	LastError string // stringified final error, empty if the failure had no error
	FailedAt  time.Time
}
