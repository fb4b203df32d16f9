// Package memcachefx provides an fx module for an in-memory response cache.
// Useful for testing.
package memcachefx

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/internal/stats"
	"github.com/lecternlabs/marginalia/internal/stats/logger"
	"github.com/lecternlabs/marginalia/internal/tier/memtier"
)

// sweepInterval controls how often the shared tier drops expired entries.
const sweepInterval = time.Minute

// Module provides an in-memory response cache for testing.
// Requires a *zap.Logger to be provided. The *memtier.Store is provided
// separately so tests can seed or inspect the shared tier.
var Module = fx.Module("memcache",
	fx.Provide(
		newStatsCollector,
		newRemote,
		newCache,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("marginalia.stats"))
}

func newRemote() *memtier.Store {
	return memtier.New(sweepInterval)
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Remote    *memtier.Store
	Lifecycle fx.Lifecycle
}

// Result holds the provided cache.
type Result struct {
	fx.Out

	Cache *marginalia.Cache
}

func newCache(p Params) (Result, error) {
	cache, err := marginalia.New(
		marginalia.WithRemote(p.Remote),
		marginalia.WithStats(p.Collector),
		marginalia.WithLogger(p.Logger.Named("marginalia")),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return cache.Close()
		},
	})

	return Result{Cache: cache}, nil
}
