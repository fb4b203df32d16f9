// Package replay runs recorded workloads against a live cache and collects
// per-request samples for analysis.
package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/internal/seed"
)

// DefaultConcurrency is the number of concurrent readers when the config
// does not set one.
const DefaultConcurrency = 8

// DefaultGeneratorLatency approximates one model round trip. Bench CLIs use
// it as their flag default.
const DefaultGeneratorLatency = 25 * time.Millisecond

// Config describes one cache configuration under measurement.
type Config struct {
	// Name labels the configuration in reports.
	Name string

	// CacheOptions build the cache under test. The replay installs its own
	// generator, overriding any generator in this list.
	CacheOptions []marginalia.Option

	// Concurrency is the number of concurrent readers. Zero means
	// DefaultConcurrency.
	Concurrency int

	// GeneratorLatency is slept on every generator call to model the
	// upstream model. Zero disables the sleep.
	GeneratorLatency time.Duration
}

// Sample is the measurement of a single replayed request.
type Sample struct {
	Tier      marginalia.Tier
	Latency   time.Duration
	Coalesced bool
	Err       error
}

// Summary aggregates a replay run.
type Summary struct {
	Name           string
	Requests       int
	ByTier         map[marginalia.Tier]int
	Coalesced      int
	Errors         int
	GeneratorCalls int64

	// HitRate is the fraction of error-free requests served from any
	// cache tier.
	HitRate float64

	// Latency percentiles in milliseconds.
	P50, P90, P99 float64

	Elapsed time.Duration
	Access  marginalia.AccessStats
	Samples []Sample
}

// Latencies returns the error-free request latencies in milliseconds, in
// replay order, for statistical comparison of two runs.
func (s *Summary) Latencies() []float64 {
	out := make([]float64, 0, len(s.Samples))
	for _, sm := range s.Samples {
		if sm.Err != nil {
			continue
		}
		out = append(out, durationMs(sm.Latency))
	}
	return out
}

// Run replays records against a cache built from cfg and returns the
// aggregated summary. Request order across workers is not deterministic,
// which is the point: coalescing and promotion race exactly as they would
// under real traffic.
func Run(ctx context.Context, cfg Config, records []seed.Record) (*Summary, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("replay: empty workload")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}

	var calls atomic.Int64
	answers := answerIndex(records)
	gen := marginalia.GeneratorFunc(func(ctx context.Context, req marginalia.Request) (marginalia.Answer, error) {
		calls.Add(1)
		if cfg.GeneratorLatency > 0 {
			select {
			case <-time.After(cfg.GeneratorLatency):
			case <-ctx.Done():
				return marginalia.Answer{}, ctx.Err()
			}
		}
		if ans, ok := answers[answerKey(req.BookID, string(req.Intent), req.Query)]; ok {
			return ans, nil
		}
		return marginalia.Answer{Content: "No notes cover this question."}, nil
	})

	opts := make([]marginalia.Option, 0, len(cfg.CacheOptions)+1)
	opts = append(opts, cfg.CacheOptions...)
	opts = append(opts, marginalia.WithGenerator(gen))
	cache, err := marginalia.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("replay: building cache: %w", err)
	}
	defer cache.Close()

	samples := make([]Sample, len(records))
	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				req := requestFrom(records[idx])
				t0 := time.Now()
				res, err := cache.GetOrGenerate(ctx, req)
				samples[idx] = Sample{
					Tier:      res.Tier,
					Latency:   time.Since(t0),
					Coalesced: res.Coalesced,
					Err:       err,
				}
			}
		}()
	}

feed:
	for i := range records {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return summarize(cfg.Name, samples, calls.Load(), elapsed, cache.Stats()), nil
}

// summarize folds samples into a Summary.
func summarize(name string, samples []Sample, calls int64, elapsed time.Duration, access marginalia.AccessStats) *Summary {
	s := &Summary{
		Name:           name,
		Requests:       len(samples),
		ByTier:         make(map[marginalia.Tier]int),
		GeneratorCalls: calls,
		Elapsed:        elapsed,
		Access:         access,
		Samples:        samples,
	}

	lats := make([]float64, 0, len(samples))
	for _, sm := range samples {
		if sm.Err != nil {
			s.Errors++
			continue
		}
		s.ByTier[sm.Tier]++
		if sm.Coalesced {
			s.Coalesced++
		}
		lats = append(lats, durationMs(sm.Latency))
	}

	served := s.Requests - s.Errors
	if served > 0 {
		hits := s.ByTier[marginalia.TierL1] + s.ByTier[marginalia.TierL2] + s.ByTier[marginalia.TierSemantic]
		s.HitRate = float64(hits) / float64(served)
	}

	sort.Float64s(lats)
	s.P50 = percentile(lats, 50)
	s.P90 = percentile(lats, 90)
	s.P99 = percentile(lats, 99)
	return s
}

// answerIndex maps every request in the workload to its recorded answer so
// the simulated generator answers consistently.
func answerIndex(records []seed.Record) map[string]marginalia.Answer {
	idx := make(map[string]marginalia.Answer, len(records))
	for _, rec := range records {
		intent := string(marginalia.ParseIntent(rec.Intent))
		idx[answerKey(rec.BookID, intent, rec.Query)] = marginalia.Answer{
			Content:    rec.Answer,
			TokensUsed: rec.TokensUsed,
			CostUSD:    rec.CostUSD,
		}
	}
	return idx
}

func answerKey(book, intent, query string) string {
	return book + "\x00" + intent + "\x00" + query
}

func requestFrom(rec seed.Record) marginalia.Request {
	return marginalia.Request{
		UserID:    rec.UserID,
		BookID:    rec.BookID,
		Public:    rec.Public,
		Intent:    marginalia.ParseIntent(rec.Intent),
		Query:     rec.Query,
		Selection: rec.Selection,
		Chapter:   rec.Chapter,
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p / 100)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
