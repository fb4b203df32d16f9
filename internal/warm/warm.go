// Package warm pre-populates a cache from a seed corpus.
package warm

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/internal/seed"
)

// DefaultWorkers is the default number of concurrent loads.
const DefaultWorkers = 8

// progressEvery throttles progress callbacks to one per this many records.
const progressEvery = 100

// Target is the cache surface the warmer fills.
type Target interface {
	Set(ctx context.Context, req marginalia.Request, ans marginalia.Answer, ttl time.Duration) error
}

// Compile-time check that the cache satisfies Target.
var _ Target = (*marginalia.Cache)(nil)

// Warmer loads seed records into a cache on a bounded worker pool.
type Warmer struct {
	target   Target
	workers  int
	progress seed.ProgressFunc
	logger   *zap.Logger
}

// Option configures the Warmer.
type Option func(*Warmer)

// WithWorkers sets the number of parallel loads.
func WithWorkers(n int) Option {
	return func(w *Warmer) { w.workers = n }
}

// WithProgress sets the progress callback.
func WithProgress(fn seed.ProgressFunc) Option {
	return func(w *Warmer) { w.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Warmer) { w.logger = l }
}

// New creates a Warmer that loads into target.
func New(target Target, opts ...Option) *Warmer {
	w := &Warmer{
		target:  target,
		workers: DefaultWorkers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.workers < 1 {
		w.workers = 1
	}
	return w
}

// Result summarizes a warm run.
type Result struct {
	// Records read from the corpus, invalid ones excluded.
	Records int64

	// Loaded entries stored in the cache.
	Loaded int64

	// Skipped records that failed validation.
	Skipped int64

	// Failed records the cache rejected.
	Failed int64

	// Elapsed wall time for the run.
	Elapsed time.Duration
}

// RunURI opens the corpus at uri and loads it.
func (w *Warmer) RunURI(ctx context.Context, uri string, opts ...seed.OpenOption) (Result, error) {
	rc, err := seed.Open(ctx, uri, opts...)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()
	return w.Run(ctx, seed.NewReader(rc))
}

// Run loads every record from r. Records that fail validation are skipped
// and counted; an unparseable line aborts the run. Individual store failures
// are counted and do not stop the run.
func (w *Warmer) Run(ctx context.Context, r *seed.Reader) (Result, error) {
	start := time.Now()
	var records, loaded, skipped, failed atomic.Int64

	report := func(phase string) {
		if w.progress == nil {
			return
		}
		w.progress(seed.Progress{
			Phase:     phase,
			Records:   records.Load(),
			Loaded:    loaded.Load(),
			Skipped:   skipped.Load(),
			Failed:    failed.Load(),
			StartTime: start,
		})
	}
	result := func() Result {
		return Result{
			Records: records.Load(),
			Loaded:  loaded.Load(),
			Skipped: skipped.Load(),
			Failed:  failed.Load(),
			Elapsed: time.Since(start),
		}
	}

	sem := make(chan struct{}, w.workers)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return result(), ctx.Err()
		default:
		}

		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, seed.ErrInvalidRecord) {
			skipped.Add(1)
			w.logger.Debug("skipping invalid record", zap.Int("line", r.Line()), zap.Error(err))
			continue
		}
		if err != nil {
			wg.Wait()
			return result(), err
		}

		records.Add(1)
		wg.Add(1)
		sem <- struct{}{}
		go func(rec seed.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := w.load(ctx, rec); err != nil {
				failed.Add(1)
				w.logger.Warn("record load failed",
					zap.String("book", rec.BookID),
					zap.Error(err),
				)
				return
			}
			loaded.Add(1)
		}(rec)

		if records.Load()%progressEvery == 0 {
			report("load")
		}
	}

	wg.Wait()
	report("done")
	return result(), nil
}

// load converts one record and stores it.
func (w *Warmer) load(ctx context.Context, rec seed.Record) error {
	req := marginalia.Request{
		UserID:    rec.UserID,
		BookID:    rec.BookID,
		Public:    rec.Public,
		Intent:    marginalia.ParseIntent(rec.Intent),
		Query:     rec.Query,
		Selection: rec.Selection,
		Chapter:   rec.Chapter,
	}
	ans := marginalia.Answer{
		Content:    rec.Answer,
		TokensUsed: rec.TokensUsed,
		CostUSD:    rec.CostUSD,
	}
	// Zero means the cache default.
	ttl := time.Duration(rec.TTLSeconds) * time.Second
	return w.target.Set(ctx, req, ans, ttl)
}
