package stats

import (
	"sync"
	"testing"
	"time"
)

func TestAccessRecorder_TotalsAndWindow(t *testing.T) {
	r := NewAccessRecorder(time.Minute, nil)

	r.RecordL1Hit()
	r.RecordL1Hit()
	r.RecordL2Hit()
	r.RecordSemanticHit()
	r.RecordMiss()
	r.RecordEviction()

	want := Counts{L1Hits: 2, L2Hits: 1, SemanticHits: 1, Misses: 1, Evictions: 1}
	if got := r.Totals(); got != want {
		t.Errorf("Totals() = %+v, want %+v", got, want)
	}

	window, span := r.Window()
	if window != want {
		t.Errorf("Window() = %+v, want %+v", window, want)
	}
	if span != time.Minute {
		t.Errorf("window span = %v, want %v", span, time.Minute)
	}
}

func TestAccessRecorder_WindowSlidesPastOldBuckets(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		mu.Lock()
		clock = clock.Add(d)
		mu.Unlock()
	}

	r := NewAccessRecorder(3*time.Second, now)

	r.RecordMiss()
	advance(time.Second)
	r.RecordL1Hit()

	window, _ := r.Window()
	if window.Misses != 1 || window.L1Hits != 1 {
		t.Fatalf("Window() = %+v, want both events inside", window)
	}

	// Four seconds later the miss has aged out; the hit went with it too
	// since only the last three one-second buckets count.
	advance(4 * time.Second)
	window, _ = r.Window()
	if window.Misses != 0 || window.L1Hits != 0 {
		t.Errorf("Window() = %+v, want empty after sliding past", window)
	}

	// Cumulative totals never age out.
	totals := r.Totals()
	if totals.Misses != 1 || totals.L1Hits != 1 {
		t.Errorf("Totals() = %+v, want cumulative counts preserved", totals)
	}
}

func TestAccessRecorder_BucketReuseZeroesOldCounts(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	r := NewAccessRecorder(2*time.Second, now)

	r.RecordMiss()
	r.RecordMiss()

	// Two seconds later the same bucket index comes around again.
	mu.Lock()
	clock = clock.Add(2 * time.Second)
	mu.Unlock()
	r.RecordMiss()

	window, _ := r.Window()
	if window.Misses != 1 {
		t.Errorf("Window().Misses = %d, want 1 after bucket reuse", window.Misses)
	}
	if got := r.Totals().Misses; got != 3 {
		t.Errorf("Totals().Misses = %d, want 3", got)
	}
}

func TestCounts_HitRate(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   float64
	}{
		{"empty", Counts{}, 0},
		{"all hits", Counts{L1Hits: 5, L2Hits: 3, SemanticHits: 2}, 1},
		{"half", Counts{L1Hits: 2, Misses: 2}, 0.5},
		{"all misses", Counts{Misses: 7}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.counts.HitRate(); got != tt.want {
				t.Errorf("HitRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessRecorder_Concurrent(t *testing.T) {
	r := NewAccessRecorder(time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.RecordL1Hit()
				r.RecordMiss()
			}
		}()
	}
	wg.Wait()

	totals := r.Totals()
	if totals.L1Hits != 8000 || totals.Misses != 8000 {
		t.Errorf("Totals() = %+v, want 8000 hits and misses", totals)
	}
}
