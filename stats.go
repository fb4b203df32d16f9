package marginalia

import (
	"time"

	"github.com/lecternlabs/marginalia/internal/stats"
)

// AccessCounts breaks cache lookups down by outcome.
type AccessCounts struct {
	// L1Hits served from the in-process tier.
	L1Hits int64

	// L2Hits served from the remote tier.
	L2Hits int64

	// SemanticHits served via rephrased-question matching.
	SemanticHits int64

	// Misses found no cached answer.
	Misses int64

	// Evictions left the in-process tier under capacity pressure or expiry.
	Evictions int64
}

// Lookups returns the total number of lookups counted.
func (c AccessCounts) Lookups() int64 {
	return c.L1Hits + c.L2Hits + c.SemanticHits + c.Misses
}

// HitRate returns the fraction of lookups served from cache, or 0 when
// nothing has been counted.
func (c AccessCounts) HitRate() float64 {
	lookups := c.Lookups()
	if lookups == 0 {
		return 0
	}
	return float64(c.L1Hits+c.L2Hits+c.SemanticHits) / float64(lookups)
}

// AccessStats is a point-in-time snapshot of cache effectiveness: counts
// since the cache was created, plus counts over the recent window.
type AccessStats struct {
	Total          AccessCounts
	Window         AccessCounts
	WindowDuration time.Duration
}

// countsToAccess converts internal access counts to the public type.
func countsToAccess(c stats.Counts) AccessCounts {
	return AccessCounts{
		L1Hits:       c.L1Hits,
		L2Hits:       c.L2Hits,
		SemanticHits: c.SemanticHits,
		Misses:       c.Misses,
		Evictions:    c.Evictions,
	}
}
