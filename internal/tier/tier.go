// Package tier defines the storage contracts shared by the cache tiers.
package tier

import (
	"context"
	"errors"
	"time"
)

// Errors returned by tier implementations.
var (
	// ErrNotFound indicates the key is not present in the tier.
	ErrNotFound = errors.New("tier: entry not found")

	// ErrCorrupt indicates the stored value could not be decoded. Callers
	// should evict the key and treat the lookup as a miss.
	ErrCorrupt = errors.New("tier: corrupt entry")
)

// Entry is a cached answer envelope as stored in the tiers. Payload is the
// encoded answer; tier code never interprets it.
type Entry struct {
	// Key is the full storage key, scope prefix included.
	Key string `json:"key"`

	// Scope is the isolation domain string the entry belongs to.
	Scope string `json:"scope"`

	// Payload is the encoded answer.
	Payload []byte `json:"payload"`

	// SizeBytes is the accounted cost of the entry, payload plus overhead.
	SizeBytes int64 `json:"sizeBytes"`

	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	HitCount       int64     `json:"hitCount"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// Expired reports whether the entry is past its TTL at now. A zero
// ExpiresAt never expires.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Cost returns the accounted size of the entry.
func (e *Entry) Cost() int64 {
	if e.SizeBytes > 0 {
		return e.SizeBytes
	}
	return int64(len(e.Payload))
}

// Remote is the shared second tier. Implementations return ErrNotFound for
// absent keys and ErrCorrupt for undecodable values; any other error is
// transient and callers degrade it to a miss.
type Remote interface {
	// Get retrieves the entry stored under key.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores the entry under key. ttl bounds the entry's lifetime in
	// the store; the entry's ExpiresAt stays authoritative metadata.
	Set(ctx context.Context, key string, e *Entry, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteBook removes every entry whose key starts with bookPrefix and
	// returns the number removed.
	DeleteBook(ctx context.Context, bookPrefix string) (int, error)

	// Close releases resources held by the store.
	Close() error
}
