package stats

import (
	"sync/atomic"
	"time"
)

// Access counter kinds.
const (
	kindL1 = iota
	kindL2
	kindSemantic
	kindMiss
	kindEviction
	kindCount
)

// Counts is one view of the access counters, either cumulative or
// restricted to the trailing window.
type Counts struct {
	L1Hits       int64
	L2Hits       int64
	SemanticHits int64
	Misses       int64
	Evictions    int64
}

// Lookups returns the number of lookups the counts cover.
func (c Counts) Lookups() int64 {
	return c.L1Hits + c.L2Hits + c.SemanticHits + c.Misses
}

// HitRate returns the fraction of lookups served from any tier, in [0, 1].
func (c Counts) HitRate() float64 {
	total := c.Lookups()
	if total == 0 {
		return 0
	}
	return float64(c.L1Hits+c.L2Hits+c.SemanticHits) / float64(total)
}

// bucket is one second of windowed counters.
type bucket struct {
	epoch  atomic.Int64
	counts [kindCount]atomic.Int64
}

// AccessRecorder tracks cumulative access counters plus a trailing window
// of one-second buckets. All updates are atomic; no lock is taken on the
// read path. Windowed numbers are approximate around bucket rotation.
type AccessRecorder struct {
	total   [kindCount]atomic.Int64
	buckets []bucket
	now     func() time.Time
}

// NewAccessRecorder creates a recorder whose window spans the given
// duration, rounded up to whole seconds (minimum one). now may be nil for
// the wall clock.
func NewAccessRecorder(window time.Duration, now func() time.Time) *AccessRecorder {
	seconds := int((window + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if now == nil {
		now = time.Now
	}
	return &AccessRecorder{
		buckets: make([]bucket, seconds),
		now:     now,
	}
}

// RecordL1Hit counts a lookup served from the first tier.
func (r *AccessRecorder) RecordL1Hit() { r.record(kindL1) }

// RecordL2Hit counts a lookup served from the shared tier.
func (r *AccessRecorder) RecordL2Hit() { r.record(kindL2) }

// RecordSemanticHit counts a lookup served via semantic matching.
func (r *AccessRecorder) RecordSemanticHit() { r.record(kindSemantic) }

// RecordMiss counts a lookup no tier could serve.
func (r *AccessRecorder) RecordMiss() { r.record(kindMiss) }

// RecordEviction counts an entry dropped by capacity pressure or expiry.
func (r *AccessRecorder) RecordEviction() { r.record(kindEviction) }

// Totals returns the cumulative counters.
func (r *AccessRecorder) Totals() Counts {
	return Counts{
		L1Hits:       r.total[kindL1].Load(),
		L2Hits:       r.total[kindL2].Load(),
		SemanticHits: r.total[kindSemantic].Load(),
		Misses:       r.total[kindMiss].Load(),
		Evictions:    r.total[kindEviction].Load(),
	}
}

// Window returns the counters covering the trailing window and the window's
// span.
func (r *AccessRecorder) Window() (Counts, time.Duration) {
	nowSec := r.now().Unix()
	span := int64(len(r.buckets))

	var sums [kindCount]int64
	for i := range r.buckets {
		b := &r.buckets[i]
		epoch := b.epoch.Load()
		if nowSec-epoch >= span {
			continue
		}
		for k := 0; k < kindCount; k++ {
			sums[k] += b.counts[k].Load()
		}
	}

	return Counts{
		L1Hits:       sums[kindL1],
		L2Hits:       sums[kindL2],
		SemanticHits: sums[kindSemantic],
		Misses:       sums[kindMiss],
		Evictions:    sums[kindEviction],
	}, time.Duration(span) * time.Second
}

// record bumps the cumulative counter and the current window bucket.
// Rotating a bucket races benignly with concurrent increments; a stale
// increment can land in a freshly zeroed bucket, which the window sum
// tolerates.
func (r *AccessRecorder) record(kind int) {
	r.total[kind].Add(1)

	nowSec := r.now().Unix()
	b := &r.buckets[nowSec%int64(len(r.buckets))]
	epoch := b.epoch.Load()
	if epoch != nowSec && b.epoch.CompareAndSwap(epoch, nowSec) {
		for k := 0; k < kindCount; k++ {
			b.counts[k].Store(0)
		}
	}
	b.counts[kind].Add(1)
}
