package marginalia

import (
	"time"

	"go.uber.org/zap"

	"github.com/lecternlabs/marginalia/internal/match"
	"github.com/lecternlabs/marginalia/internal/match/overlapmatch"
	"github.com/lecternlabs/marginalia/internal/normalize"
	"github.com/lecternlabs/marginalia/internal/stats"
	"github.com/lecternlabs/marginalia/internal/tier"
)

// Option configures a Cache.
type Option interface {
	apply(*options)
}

// options holds the cache configuration.
type options struct {
	l1MaxEntries      int
	l1MaxBytes        int64
	defaultTTL        time.Duration
	semanticThreshold float64
	semanticWindow    int
	coalesceTimeout   time.Duration
	selectionCap      int
	statsWindow       time.Duration
	synonyms          map[string]string
	remote            tier.Remote
	matcher           match.Matcher
	generator         Generator
	stats             stats.Collector
	logger            *zap.Logger
	clock             func() time.Time
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		l1MaxEntries:      4096,
		l1MaxBytes:        64 << 20, // 64 MiB
		defaultTTL:        15 * time.Minute,
		semanticThreshold: 0.5,
		semanticWindow:    128,
		coalesceTimeout:   4 * time.Second,
		selectionCap:      1024,
		statsWindow:       time.Minute,
		stats:             stats.NewNoop(),
		logger:            zap.NewNop(),
		clock:             time.Now,
	}
}

// normalizer builds the query normalizer, folding in configured synonyms.
func (o *options) normalizer() *normalize.Normalizer {
	return normalize.New(o.synonyms)
}

// matcherOrDefault returns the configured matcher, or a token-overlap
// matcher built from the semantic settings.
func (o *options) matcherOrDefault() match.Matcher {
	if o.matcher != nil {
		return o.matcher
	}
	return overlapmatch.New(o.semanticThreshold, o.semanticWindow)
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithL1MaxEntries sets the in-process tier entry capacity.
// Default is 4096.
func WithL1MaxEntries(n int) Option {
	return optionFunc(func(o *options) {
		o.l1MaxEntries = n
	})
}

// WithL1MaxBytes sets the in-process tier payload byte budget.
// Default is 64 MiB; zero disables the byte bound.
func WithL1MaxBytes(n int64) Option {
	return optionFunc(func(o *options) {
		o.l1MaxBytes = n
	})
}

// WithDefaultTTL sets the lifetime applied to cached answers when the
// caller does not provide one. Default is 15 minutes.
func WithDefaultTTL(ttl time.Duration) Option {
	return optionFunc(func(o *options) {
		o.defaultTTL = ttl
	})
}

// WithSemanticThreshold sets the minimum token-overlap similarity for a
// semantic hit, in [0, 1]. Default is 0.5.
func WithSemanticThreshold(t float64) Option {
	return optionFunc(func(o *options) {
		o.semanticThreshold = t
	})
}

// WithSemanticWindowSize sets how many recent questions per scope the
// semantic matcher remembers. Default is 128; zero disables matching.
func WithSemanticWindowSize(n int) Option {
	return optionFunc(func(o *options) {
		o.semanticWindow = n
	})
}

// WithCoalesceTimeout sets how long a caller waits on another caller's
// in-flight generation before generating independently. Default is 4s.
func WithCoalesceTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.coalesceTimeout = d
	})
}

// WithSelectionCap sets how many bytes of normalized selection text
// participate in key derivation. Default is 1024.
func WithSelectionCap(n int) Option {
	return optionFunc(func(o *options) {
		o.selectionCap = n
	})
}

// WithStatsWindow sets the span of the recent-window access stats.
// Default is one minute.
func WithStatsWindow(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.statsWindow = d
	})
}

// WithSynonyms adds domain synonyms folded during query normalization, on
// top of the built-in reading-domain set.
func WithSynonyms(synonyms map[string]string) Option {
	return optionFunc(func(o *options) {
		o.synonyms = synonyms
	})
}

// WithRemote sets the shared remote tier.
// If not set, the cache runs on the in-process tier alone.
func WithRemote(r tier.Remote) Option {
	return optionFunc(func(o *options) {
		o.remote = r
	})
}

// WithMatcher sets the semantic matcher.
// If not set, token-overlap matching is used.
func WithMatcher(m match.Matcher) Option {
	return optionFunc(func(o *options) {
		o.matcher = m
	})
}

// WithGenerator sets the answer generator used by GetOrGenerate.
func WithGenerator(g Generator) Option {
	return optionFunc(func(o *options) {
		o.generator = g
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithClock sets the time source used for TTL accounting. Intended for
// tests.
func WithClock(clock func() time.Time) Option {
	return optionFunc(func(o *options) {
		o.clock = clock
	})
}
