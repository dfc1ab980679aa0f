package types

import "time"

// a lock record is a named mutual-exclusion lease stored in the record table
// created by external lock-acquisition clients, mutated only by the ttl updater
// the storage layer deletes it on its own once ExpirationTime is in the past
type LockRecord struct {
	LockID         string
	ExpirationTime int64 // unix epoch seconds; zero means the attribute is absent
}

// whether the record still has at least grace remaining before it expires
// records below the grace window get their expiration proactively refreshed
func (r *LockRecord) FreshAt(now time.Time, grace time.Duration) bool {
	if r.ExpirationTime == 0 {
		return false
	}
	return r.ExpirationTime >= now.Add(grace).Unix()
}
