// Package store holds the event model and the snapshot storage providers.
//
// Providers handle storage mechanics (disk, memory, or SQLite). Callers
// construct a provider once and interact only with its contract after that:
// Load returns the latest snapshot, Save writes a new one, CheckStaleness
// reports the age of the newest snapshot.
package store

import (
	"fmt"
	"time"
)

// StaleAfter is how old a snapshot may get before queries warn about it.
const StaleAfter = 12 * time.Hour

// Staleness describes the age of the newest snapshot.
type Staleness struct {
	IsStale bool
	Age     time.Duration
}

// Provider is the snapshot storage capability.
type Provider interface {
	// Load returns the events from the newest snapshot.
	Load() ([]*Event, error)

	// Save writes a new snapshot and returns its location (path or table key).
	Save(events []*Event, fetchedAt time.Time) (string, error)

	// CheckStaleness reports whether the newest snapshot is older than
	// StaleAfter. A missing snapshot is not stale; Load will fail instead.
	CheckStaleness() (Staleness, error)
}

// SeenStore persists the set of event URLs the user has already reviewed.
type SeenStore interface {
	SeenURLs() (map[string]struct{}, error)
	MarkSeen(urls []string) error
	ResetSeen() (bool, error)
}

// CacheError reports a missing or unreadable event snapshot. It is surfaced
// to the user, never retried; refreshing the cache is an explicit action.
type CacheError struct {
	msg string
}

func (e *CacheError) Error() string { return e.msg }

// NewCacheError builds a CacheError with a formatted message.
func NewCacheError(format string, args ...any) *CacheError {
	return &CacheError{msg: fmt.Sprintf(format, args...)}
}
