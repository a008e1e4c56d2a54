package domain

import "time"

// DocumentLock is a short-TTL mutual exclusion claim on a document during
// indexing.
type DocumentLock struct {
	ID           string
	SourceURI    string
	ClientID     string
	LockedAt     time.Time
	ExpiresAt    time.Time
	LockReason   string
	RootID       *string
	RelativePath *string
}

// IsExpired reports whether the lock's TTL has elapsed as of now.
func (l *DocumentLock) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
