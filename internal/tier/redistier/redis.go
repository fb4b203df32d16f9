// Package redistier implements the shared second tier on Redis. Entries are
// stored as codec-compressed JSON envelopes under TTL; Redis expiry is the
// background sweep.
package redistier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lecternlabs/marginalia/internal/codec"
	"github.com/lecternlabs/marginalia/internal/tier"
)

// Compile-time check that Store implements tier.Remote.
var _ tier.Remote = (*Store)(nil)

// DefaultPrefix namespaces cache keys in a shared Redis.
const DefaultPrefix = "marginalia"

// scanBatch is how many keys a book invalidation scans and deletes at once.
const scanBatch = 100

// Store is the Redis-backed shared tier. Closing the store closes the
// client it was given.
type Store struct {
	rdb    redis.UniversalClient
	codec  codec.Codec
	prefix string
	logger *zap.Logger
}

// New creates a Store on an existing Redis client. prefix defaults to
// DefaultPrefix when empty; logger may be nil.
func New(rdb redis.UniversalClient, c codec.Codec, prefix string, logger *zap.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		rdb:    rdb,
		codec:  c,
		prefix: prefix,
		logger: logger,
	}
}

// Get retrieves and decodes the entry under key. Absent keys return
// ErrNotFound; undecodable values return ErrCorrupt.
func (s *Store) Get(ctx context.Context, key string) (*tier.Entry, error) {
	raw, err := s.rdb.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, tier.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	envelope, err := s.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", tier.ErrCorrupt, err)
	}

	var e tier.Entry
	if err := json.Unmarshal(envelope, &e); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", tier.ErrCorrupt, err)
	}
	return &e, nil
}

// Set encodes and stores the entry under key with the given TTL. A
// non-positive ttl falls back to the entry's remaining lifetime; entries
// already past it are not written.
func (s *Store) Set(ctx context.Context, key string, e *tier.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		if e.ExpiresAt.IsZero() {
			return fmt.Errorf("redistier: entry %q has no TTL", key)
		}
		ttl = time.Until(e.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	envelope, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	data, err := s.codec.Encode(envelope)
	if err != nil {
		return fmt.Errorf("compress envelope: %w", err)
	}

	if err := s.rdb.Set(ctx, s.fullKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteBook scans out every key under the book prefix and deletes them in
// batches, returning the number removed.
func (s *Store) DeleteBook(ctx context.Context, bookPrefix string) (int, error) {
	pattern := s.fullKey(bookPrefix) + "*"

	removed := 0
	batch := make([]string, 0, scanBatch)
	iter := s.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			n, err := s.deleteBatch(ctx, batch)
			removed += n
			if err != nil {
				return removed, err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		n, err := s.deleteBatch(ctx, batch)
		removed += n
		if err != nil {
			return removed, err
		}
	}

	s.logger.Debug("book invalidated in redis",
		zap.String("pattern", pattern),
		zap.Int("removed", removed),
	)
	return removed, nil
}

// CountBook returns how many keys currently live under the book prefix.
// Used by operational tooling, not by the read path.
func (s *Store) CountBook(ctx context.Context, bookPrefix string) (int, error) {
	pattern := s.fullKey(bookPrefix) + "*"

	count := 0
	iter := s.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("redis scan: %w", err)
	}
	return count, nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) deleteBatch(ctx context.Context, keys []string) (int, error) {
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return int(n), fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

func (s *Store) fullKey(key string) string {
	return s.prefix + ":" + key
}
