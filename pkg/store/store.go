package store

import "context"

// RecordStore is the port onto the lock record table
// it is shared with external lock-acquisition clients, so writes go through
// SetExpirationIfGreater exclusively - never a blind overwrite
type RecordStore interface {
	// GetExpiration returns the stored expiration for lockID.
	// found is false when the record or its expiration attribute is absent.
	GetExpiration(ctx context.Context, lockID string) (expiration int64, found bool, err error)

	// SetExpirationIfGreater writes expiration iff the stored value is absent
	// or smaller. applied is false when the condition did not hold, meaning
	// another writer already advanced the expiration further - a benign no-op,
	// not an error.
	SetExpirationIfGreater(ctx context.Context, lockID string, expiration int64) (applied bool, err error)
}
