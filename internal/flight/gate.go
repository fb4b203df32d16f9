// Package flight deduplicates concurrent answer generation for the same
// cache key.
package flight

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Gate coalesces concurrent calls per key. The first caller for a key (the
// leader) runs the function; callers arriving while it runs (followers)
// wait for the shared result. Followers stop waiting after the configured
// bound and fall back to running the function themselves, as they do when
// the leader fails. The gate releases a key as soon as its call completes,
// successfully or not.
type Gate struct {
	group   singleflight.Group
	timeout time.Duration
}

// New creates a Gate. timeout bounds how long a follower waits on a leader;
// non-positive means followers wait as long as their context allows.
func New(timeout time.Duration) *Gate {
	return &Gate{timeout: timeout}
}

// Do runs fn through the per-key gate.
//
// The leader always receives its own result, errors included. A follower
// adopts the leader's result only on success, reported with coalesced set;
// on leader failure or wait timeout it runs fn independently. Context
// cancellation while waiting returns ctx.Err().
func (g *Gate) Do(ctx context.Context, key string, fn func() (any, error)) (v any, coalesced bool, err error) {
	// Set inside the gated closure, so it is only ever true for the one
	// caller whose closure actually ran.
	var leader atomic.Bool

	ch := g.group.DoChan(key, func() (any, error) {
		leader.Store(true)
		return fn()
	})

	var timeoutCh <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		select {
		case res := <-ch:
			if res.Err != nil {
				if leader.Load() {
					return nil, false, res.Err
				}
				// The leader failed on our behalf; try once ourselves.
				v, err = fn()
				return v, false, err
			}
			return res.Val, !leader.Load(), nil

		case <-timeoutCh:
			if leader.Load() {
				// Our own call is the slow one; keep waiting for it.
				timeoutCh = nil
				continue
			}
			v, err = fn()
			return v, false, err

		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Forget removes any in-flight record for key, making the next caller a
// fresh leader.
func (g *Gate) Forget(key string) {
	g.group.Forget(key)
}
