package cache

import (
	"time"
)

// Entry represents a cached value with its expiry metadata.
type Entry struct {
	// Value is the cached payload. The store treats it as opaque.
	Value any `json:"value"`

	// Key is the cache key the entry was stored under.
	Key string `json:"key"`

	// CreatedAt is when the entry was inserted. Eviction order is oldest
	// CreatedAt first.
	CreatedAt time.Time `json:"created_at"`

	// TTL is how long after CreatedAt the entry remains valid.
	TTL time.Duration `json:"ttl"`
}

// ExpiresAt returns the instant the entry becomes stale.
func (e *Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// IsExpiredAt reports whether the entry is stale at the given instant.
// An entry is stale from the exact expiry instant onward.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Age returns how long ago the entry was inserted.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
