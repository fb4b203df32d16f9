// Package memtier provides an in-process implementation of the shared tier
// for tests and single-node deployments. Entries live in a plain map with a
// janitor goroutine sweeping out expired ones.
package memtier

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lecternlabs/marginalia/internal/tier"
)

// Compile-time check that Store implements tier.Remote.
var _ tier.Remote = (*Store)(nil)

// Store is the in-memory shared tier.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*tier.Entry

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a Store. sweepInterval > 0 starts a janitor that removes
// expired entries periodically; expired entries are dropped on read either
// way.
func New(sweepInterval time.Duration) *Store {
	s := &Store{
		entries: make(map[string]*tier.Entry),
		stopCh:  make(chan struct{}),
	}

	if sweepInterval > 0 {
		s.wg.Add(1)
		go s.janitor(sweepInterval)
	}

	return s
}

// Get returns a copy of the entry under key, mimicking the serialization
// boundary of a networked store.
func (s *Store) Get(ctx context.Context, key string) (*tier.Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, tier.ErrNotFound
	}
	if e.Expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, tier.ErrNotFound
	}

	cp := *e
	return &cp, nil
}

// Set stores a copy of the entry under key. A positive ttl overrides the
// entry's ExpiresAt for sweeping purposes when the entry carries none.
func (s *Store) Set(ctx context.Context, key string, e *tier.Entry, ttl time.Duration) error {
	cp := *e
	if cp.ExpiresAt.IsZero() && ttl > 0 {
		cp.ExpiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = &cp
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// DeleteBook removes every entry whose key starts with bookPrefix.
func (s *Store) DeleteBook(ctx context.Context, bookPrefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, bookPrefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Close stops the janitor. Safe to call more than once.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return nil
}

// Len returns the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// janitor sweeps expired entries until Close.
func (s *Store) janitor(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// sweep removes every expired entry.
func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
		}
	}
}
