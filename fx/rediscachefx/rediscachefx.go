// Package rediscachefx provides an fx module for a Redis-backed response cache.
package rediscachefx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/internal/codec/zstdcodec"
	"github.com/lecternlabs/marginalia/internal/stats"
	"github.com/lecternlabs/marginalia/internal/stats/logger"
	"github.com/lecternlabs/marginalia/internal/tier/redistier"
)

// Config holds configuration for the Redis-backed cache.
type Config struct {
	// Addr is the Redis server address.
	Addr string

	// DB selects the Redis database. Default is 0.
	DB int

	// Prefix namespaces cache keys.
	// Default is redistier.DefaultPrefix.
	Prefix string

	// DefaultTTL overrides the cache default TTL when positive.
	DefaultTTL time.Duration
}

// Module provides a Redis-backed response cache.
// Requires a Config and a *zap.Logger to be provided.
var Module = fx.Module("rediscache",
	fx.Provide(
		newStatsCollector,
		newCache,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("marginalia.stats"))
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided cache.
type Result struct {
	fx.Out

	Cache *marginalia.Cache
}

func newCache(p Params) (Result, error) {
	c, err := zstdcodec.New()
	if err != nil {
		return Result{}, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: p.Config.Addr,
		DB:   p.Config.DB,
	})
	remote := redistier.New(rdb, c, p.Config.Prefix, p.Logger.Named("marginalia.redis"))

	opts := []marginalia.Option{
		marginalia.WithRemote(remote),
		marginalia.WithStats(p.Collector),
		marginalia.WithLogger(p.Logger.Named("marginalia")),
	}
	if p.Config.DefaultTTL > 0 {
		opts = append(opts, marginalia.WithDefaultTTL(p.Config.DefaultTTL))
	}

	cache, err := marginalia.New(opts...)
	if err != nil {
		remote.Close()
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return remote.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return cache.Close()
		},
	})

	return Result{Cache: cache}, nil
}
