// Package marginalia caches AI reading-assistant answers across two tiers:
// a private in-process LRU and an optional shared remote store. Lookups that
// miss both tiers can fall back to a semantic match over recently cached
// questions, and concurrent generations of the same answer are coalesced.
//
// Example usage:
//
//	cache, err := marginalia.New(
//	    marginalia.WithGenerator(gen),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
//	res, err := cache.GetOrGenerate(ctx, marginalia.Request{
//	    UserID: "u-42",
//	    BookID: "gatsby",
//	    Query:  "Who is the narrator?",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s (tier %s)\n", res.Answer.Content, res.Tier)
package marginalia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lecternlabs/marginalia/internal/cachekey"
	"github.com/lecternlabs/marginalia/internal/flight"
	"github.com/lecternlabs/marginalia/internal/match"
	"github.com/lecternlabs/marginalia/internal/stats"
	"github.com/lecternlabs/marginalia/internal/tier"
	"github.com/lecternlabs/marginalia/internal/tier/lrutier"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("marginalia: cache closed")

	// ErrNoGenerator indicates GetOrGenerate was called on a cache built
	// without WithGenerator.
	ErrNoGenerator = errors.New("marginalia: no generator provided")

	// ErrEmptyQuery indicates the request query was empty after normalization.
	ErrEmptyQuery = errors.New("marginalia: empty query")

	// ErrNoBook indicates the request did not name a book.
	ErrNoBook = errors.New("marginalia: missing book id")

	// ErrNoUser indicates a private request did not name a user.
	ErrNoUser = errors.New("marginalia: missing user id")

	// ErrScopeViolation indicates a stored entry belongs to a different
	// owner or book than the request that found it.
	ErrScopeViolation = errors.New("marginalia: entry scope mismatch")
)

const (
	// maxPendingRemoteWrites bounds concurrent asynchronous remote writes.
	// Writes past the bound are dropped and counted, never queued unbounded.
	maxPendingRemoteWrites = 64

	// remoteWriteTimeout bounds a single asynchronous remote write.
	remoteWriteTimeout = 5 * time.Second
)

// Cache is a two-tier response cache for assistant answers.
// A Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	keys    *cachekey.Generator
	l1      *lrutier.Cache
	remote  tier.Remote
	matcher match.Matcher
	gate    *flight.Gate
	gen     Generator

	defaultTTL time.Duration

	access *stats.AccessRecorder
	stats  stats.Collector
	logger *zap.Logger
	clock  func() time.Time

	writeSem   *semaphore.Weighted
	baseCtx    context.Context
	baseCancel context.CancelFunc

	closed atomic.Bool
}

// New creates a Cache with the given options.
// If no options are provided, sensible defaults are used: an in-process tier
// only, token-overlap semantic matching, and no generator.
func New(opts ...Option) (*Cache, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.semanticThreshold < 0 || cfg.semanticThreshold > 1 {
		return nil, fmt.Errorf("marginalia: semantic threshold %v out of range [0, 1]", cfg.semanticThreshold)
	}

	c := &Cache{
		keys:       cachekey.New(cfg.normalizer(), cfg.selectionCap),
		remote:     cfg.remote,
		matcher:    cfg.matcherOrDefault(),
		gate:       flight.New(cfg.coalesceTimeout),
		gen:        cfg.generator,
		defaultTTL: cfg.defaultTTL,
		access:     stats.NewAccessRecorder(cfg.statsWindow, cfg.clock),
		stats:      cfg.stats,
		logger:     cfg.logger,
		clock:      cfg.clock,
		writeSem:   semaphore.NewWeighted(maxPendingRemoteWrites),
	}

	l1, err := lrutier.New(cfg.l1MaxEntries, cfg.l1MaxBytes, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("marginalia: %w", err)
	}
	c.l1 = l1
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())

	c.logger.Debug("cache initialized",
		zap.Int("l1MaxEntries", cfg.l1MaxEntries),
		zap.Int64("l1MaxBytes", cfg.l1MaxBytes),
		zap.Duration("defaultTTL", cfg.defaultTTL),
		zap.Float64("semanticThreshold", cfg.semanticThreshold),
		zap.String("matcher", c.matcher.Name()),
		zap.Bool("remote", c.remote != nil),
	)

	return c, nil
}

// Get returns the cached answer for a request, or a miss Result with
// Hit=false. A miss is not an error; errors mean the request was invalid or
// a stored entry failed its scope check.
func (c *Cache) Get(ctx context.Context, req Request) (Result, error) {
	if c.closed.Load() {
		return Result{}, ErrClosed
	}

	key, err := c.keys.Generate(keyInput(req))
	if err != nil {
		return Result{}, mapKeyError(err)
	}
	return c.lookup(ctx, key)
}

// GetOrGenerate returns the cached answer for a request, generating and
// caching it on a miss. Concurrent calls for the same key share a single
// generation; callers that coalesced onto another's generation have
// Coalesced set in the Result. Generator errors are returned and never
// cached.
func (c *Cache) GetOrGenerate(ctx context.Context, req Request) (Result, error) {
	if c.closed.Load() {
		return Result{}, ErrClosed
	}
	if c.gen == nil {
		return Result{}, ErrNoGenerator
	}

	key, err := c.keys.Generate(keyInput(req))
	if err != nil {
		return Result{}, mapKeyError(err)
	}

	res, err := c.lookup(ctx, key)
	if err != nil || res.Hit {
		return res, err
	}
	return c.generate(ctx, key, req)
}

// Set stores an answer for a request without consulting the generator.
// A non-positive ttl uses the cache default.
func (c *Cache) Set(ctx context.Context, req Request, ans Answer, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}

	key, err := c.keys.Generate(keyInput(req))
	if err != nil {
		return mapKeyError(err)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.store(key, ans, ttl)
}

// Invalidate removes every cached answer for a book, across both tiers and
// the semantic window, for all owners including the public scope. It returns
// the number of stored entries removed.
func (c *Cache) Invalidate(ctx context.Context, bookID string) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if bookID == "" {
		return 0, ErrNoBook
	}

	c.stats.IncCounter(stats.MetricInvalidations, 1)
	prefix := cachekey.BookPrefix(bookID)

	removed := c.l1.RemoveBook(prefix)
	c.matcher.DropBook(prefix)

	if c.remote != nil {
		n, err := c.remote.DeleteBook(ctx, prefix)
		removed += n
		if err != nil {
			c.stats.IncCounter(stats.MetricStoreErrors, 1)
			return removed, fmt.Errorf("invalidating book %q: %w", bookID, err)
		}
	}

	c.stats.IncCounter(stats.MetricInvalidatedKeys, int64(removed))
	c.logger.Debug("book invalidated",
		zap.String("book", bookID),
		zap.Int("removed", removed),
	)
	return removed, nil
}

// Stats returns a snapshot of cumulative and recent-window access counts.
func (c *Cache) Stats() AccessStats {
	total := c.access.Totals()
	window, span := c.access.Window()
	return AccessStats{
		Total:          countsToAccess(total),
		Window:         countsToAccess(window),
		WindowDuration: span,
	}
}

// Close releases all resources associated with the cache. It waits for
// in-flight remote writes, each bounded by its own timeout, then closes the
// remote tier. After Close the cache should not be used.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	if c.remote != nil {
		// Holding every permit means no write goroutine is in flight and
		// no new one can start.
		if err := c.writeSem.Acquire(context.Background(), maxPendingRemoteWrites); err == nil {
			c.writeSem.Release(maxPendingRemoteWrites)
		}
	}
	c.baseCancel()

	if c.remote != nil {
		if err := c.remote.Close(); err != nil {
			return fmt.Errorf("closing remote tier: %w", err)
		}
	}
	return nil
}

// lookup walks the tiers for an exact key, then consults the semantic
// matcher. Exactly one access-stat outcome is recorded per call.
func (c *Cache) lookup(ctx context.Context, key cachekey.Key) (Result, error) {
	c.stats.IncCounter(stats.MetricGets, 1)

	storage := key.Storage()
	scope := key.Scope.String()
	now := c.clock()

	if entry, ok := c.l1.Get(storage, now); ok {
		if entry.Scope != scope {
			return Result{}, c.scopeViolation(storage, entry.Scope, scope)
		}
		ans, err := decodeAnswer(entry.Payload)
		if err == nil {
			c.access.RecordL1Hit()
			c.stats.IncCounter(stats.MetricL1Hits, 1)
			c.matcher.Observe(matchScope(key), storage, key.Tokens)
			return Result{Answer: ans, Tier: TierL1, Hit: true}, nil
		}
		c.l1.Remove(storage)
		c.stats.IncCounter(stats.MetricCorruptEntries, 1)
		c.logger.Warn("dropped corrupt l1 entry", zap.String("key", storage), zap.Error(err))
	}

	if res, ok, err := c.remoteLookup(ctx, storage, scope, key, now); err != nil {
		return Result{}, err
	} else if ok {
		return res, nil
	}

	if res, ok := c.semanticLookup(ctx, key, now); ok {
		return res, nil
	}

	c.access.RecordMiss()
	c.stats.IncCounter(stats.MetricMisses, 1)
	return Result{}, nil
}

// remoteLookup consults the remote tier and promotes hits into L1.
// Transient remote failures degrade to a miss; corrupt entries are deleted
// so the next write heals them.
func (c *Cache) remoteLookup(ctx context.Context, storage, scope string, key cachekey.Key, now time.Time) (Result, bool, error) {
	if c.remote == nil {
		return Result{}, false, nil
	}

	entry, err := c.remote.Get(ctx, storage)
	switch {
	case err == nil:
		if entry.Scope != scope {
			return Result{}, false, c.scopeViolation(storage, entry.Scope, scope)
		}
		if entry.Expired(now) {
			return Result{}, false, nil
		}
		ans, derr := decodeAnswer(entry.Payload)
		if derr != nil {
			c.stats.IncCounter(stats.MetricCorruptEntries, 1)
			c.deleteRemote(ctx, storage)
			return Result{}, false, nil
		}
		entry.LastAccessedAt = now
		c.l1.Set(entry)
		c.access.RecordL2Hit()
		c.stats.IncCounter(stats.MetricL2Hits, 1)
		c.matcher.Observe(matchScope(key), storage, key.Tokens)
		return Result{Answer: ans, Tier: TierL2, Hit: true}, true, nil

	case errors.Is(err, tier.ErrNotFound):
		return Result{}, false, nil

	case errors.Is(err, tier.ErrCorrupt):
		c.stats.IncCounter(stats.MetricCorruptEntries, 1)
		c.deleteRemote(ctx, storage)
		c.logger.Warn("dropped corrupt remote entry", zap.String("key", storage), zap.Error(err))
		return Result{}, false, nil

	default:
		c.stats.IncCounter(stats.MetricStoreErrors, 1)
		c.logger.Warn("remote tier degraded", zap.String("key", storage), zap.Error(err))
		return Result{}, false, nil
	}
}

// semanticLookup serves a rephrased question from a recently cached answer
// in the same scope and intent. Stale matcher entries are pruned on the way.
func (c *Cache) semanticLookup(ctx context.Context, key cachekey.Key, now time.Time) (Result, bool) {
	scope := key.Scope.String()
	matched, score, ok := c.matcher.Match(matchScope(key), key.Tokens)
	if !ok {
		return Result{}, false
	}

	if entry, found := c.l1.Get(matched, now); found && entry.Scope == scope {
		if ans, err := decodeAnswer(entry.Payload); err == nil {
			c.access.RecordSemanticHit()
			c.stats.IncCounter(stats.MetricSemanticHits, 1)
			return Result{Answer: ans, Tier: TierSemantic, Hit: true, Score: score}, true
		}
	}

	if c.remote != nil {
		if entry, err := c.remote.Get(ctx, matched); err == nil && entry.Scope == scope && !entry.Expired(now) {
			if ans, derr := decodeAnswer(entry.Payload); derr == nil {
				entry.LastAccessedAt = now
				c.l1.Set(entry)
				c.access.RecordSemanticHit()
				c.stats.IncCounter(stats.MetricSemanticHits, 1)
				return Result{Answer: ans, Tier: TierSemantic, Hit: true, Score: score}, true
			}
		}
	}

	// The matched answer is gone from both tiers.
	c.matcher.Remove(matchScope(key), matched)
	return Result{}, false
}

// generate runs the generator behind the coalescing gate and caches the
// result. Only the caller whose closure actually runs pays for generation;
// the rest coalesce onto it or, past the gate timeout, generate on their own.
func (c *Cache) generate(ctx context.Context, key cachekey.Key, req Request) (Result, error) {
	fn := func() (any, error) {
		c.stats.IncCounter(stats.MetricGenerations, 1)
		start := time.Now()

		ans, err := c.gen.Generate(ctx, req)
		if err != nil {
			c.stats.IncCounter(stats.MetricGenerationErrors, 1)
			return nil, fmt.Errorf("generating answer: %w", err)
		}

		c.stats.ObserveHistogram(stats.MetricGenerationSeconds, time.Since(start).Seconds())
		if serr := c.store(key, ans, c.defaultTTL); serr != nil {
			c.logger.Warn("caching generated answer failed", zap.String("key", key.Storage()), zap.Error(serr))
		}
		return ans, nil
	}

	v, coalesced, err := c.gate.Do(ctx, key.Storage(), fn)
	if err != nil {
		return Result{}, err
	}
	if coalesced {
		c.stats.IncCounter(stats.MetricCoalescedWaits, 1)
	}

	return Result{Answer: v.(Answer), Tier: TierGenerated, Coalesced: coalesced}, nil
}

// store writes an answer into L1 synchronously and the remote tier
// asynchronously, and registers it with the semantic matcher.
func (c *Cache) store(key cachekey.Key, ans Answer, ttl time.Duration) error {
	payload, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("encoding answer: %w", err)
	}

	now := c.clock()
	scope := key.Scope.String()
	entry := &tier.Entry{
		Key:            key.Storage(),
		Scope:          scope,
		Payload:        payload,
		SizeBytes:      int64(len(payload)),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}

	c.stats.IncCounter(stats.MetricSets, 1)
	if !c.l1.Set(entry) {
		c.logger.Debug("entry too large for l1", zap.String("key", entry.Key), zap.Int64("bytes", entry.SizeBytes))
	}
	c.matcher.Observe(matchScope(key), entry.Key, key.Tokens)
	c.enqueueRemoteSet(entry, ttl)

	c.stats.SetGauge(stats.MetricL1Entries, int64(c.l1.Len()))
	c.stats.SetGauge(stats.MetricL1Bytes, c.l1.Bytes())
	return nil
}

// enqueueRemoteSet writes an entry to the remote tier on a bounded set of
// background goroutines. When the bound is reached the write is dropped and
// counted rather than queued.
func (c *Cache) enqueueRemoteSet(entry *tier.Entry, ttl time.Duration) {
	if c.remote == nil {
		return
	}
	if !c.writeSem.TryAcquire(1) {
		c.stats.IncCounter(stats.MetricL2WritesDropped, 1)
		c.logger.Debug("remote write dropped", zap.String("key", entry.Key))
		return
	}

	go func() {
		defer c.writeSem.Release(1)

		ctx, cancel := context.WithTimeout(c.baseCtx, remoteWriteTimeout)
		defer cancel()

		if err := c.remote.Set(ctx, entry.Key, entry, ttl); err != nil {
			c.stats.IncCounter(stats.MetricStoreErrors, 1)
			c.logger.Warn("remote write failed", zap.String("key", entry.Key), zap.Error(err))
		}
	}()
}

// deleteRemote best-effort deletes a remote entry.
func (c *Cache) deleteRemote(ctx context.Context, storage string) {
	if err := c.remote.Delete(ctx, storage); err != nil {
		c.logger.Debug("remote delete failed", zap.String("key", storage), zap.Error(err))
	}
}

// onEvict records an entry leaving L1 under capacity pressure or expiry.
// Called with the L1 lock held; it must not call back into the tier.
func (c *Cache) onEvict(entry *tier.Entry) {
	c.access.RecordEviction()
	c.stats.IncCounter(stats.MetricEvictions, 1)
}

func (c *Cache) scopeViolation(storage, entryScope, requestScope string) error {
	c.stats.IncCounter(stats.MetricScopeViolations, 1)
	c.logger.Error("cached entry scope mismatch",
		zap.String("key", storage),
		zap.String("entryScope", entryScope),
		zap.String("requestScope", requestScope),
	)
	return ErrScopeViolation
}

// matchScope is the semantic matcher's isolation domain: the storage scope
// plus the intent, so rephrase matching never crosses owners, books, or
// answer kinds. It keeps the book prefix so DropBook covers it.
func matchScope(key cachekey.Key) string {
	return key.Scope.String() + ":i:" + key.Intent
}

// keyInput converts a public Request to the key derivation input.
func keyInput(req Request) cachekey.Input {
	return cachekey.Input{
		UserID:    req.UserID,
		BookID:    req.BookID,
		Public:    req.Public,
		Intent:    string(ParseIntent(string(req.Intent))),
		Query:     req.Query,
		Selection: req.Selection,
		Chapter:   req.Chapter,
	}
}

// mapKeyError converts internal key derivation errors to public sentinels.
func mapKeyError(err error) error {
	switch {
	case errors.Is(err, cachekey.ErrEmptyQuery):
		return ErrEmptyQuery
	case errors.Is(err, cachekey.ErrNoBook):
		return ErrNoBook
	case errors.Is(err, cachekey.ErrNoUser):
		return ErrNoUser
	}
	return err
}

// decodeAnswer unmarshals a stored payload back into an Answer.
func decodeAnswer(payload []byte) (Answer, error) {
	var ans Answer
	if err := json.Unmarshal(payload, &ans); err != nil {
		return Answer{}, fmt.Errorf("decoding cached answer: %w", err)
	}
	return ans, nil
}
