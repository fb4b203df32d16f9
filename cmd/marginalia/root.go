package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/internal/codec/zstdcodec"
	"github.com/lecternlabs/marginalia/internal/tier/redistier"
)

var (
	// Global flags.
	redisAddr   string
	redisDB     int
	redisPrefix string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "marginalia",
	Short: "Operate a shared cache of reading-assistant answers",
	Long: `Marginalia is a CLI for operating the response cache shared by
reading-assistant instances.

It talks to the same Redis tier the assistants use, so answers warmed or
purged here are visible to every instance.

Examples:
  # Pre-populate the cache from a seed corpus
  marginalia warm ./corpus.jsonl.zst

  # Check whether a question is cached
  marginalia query --book gatsby --user u-123 "Who is Nick Carraway?"

  # Drop every cached answer for a re-uploaded book
  marginalia purge gatsby

  # Count cached answers per book
  marginalia stats gatsby mobydick`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "redis address of the shared tier")
	rootCmd.PersistentFlags().IntVar(&redisDB, "redis-db", 0, "redis database number")
	rootCmd.PersistentFlags().StringVar(&redisPrefix, "prefix", redistier.DefaultPrefix, "key prefix in the shared tier")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newRemote connects to the shared tier and pings it before returning.
func newRemote(logger *zap.Logger) (*redistier.Store, error) {
	c, err := zstdcodec.New()
	if err != nil {
		return nil, fmt.Errorf("creating codec: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	store := redistier.New(rdb, c, redisPrefix, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", redisAddr, err)
	}
	return store, nil
}

// newCache builds a cache backed by the shared tier.
func newCache(logger *zap.Logger, opts ...marginalia.Option) (*marginalia.Cache, error) {
	remote, err := newRemote(logger)
	if err != nil {
		return nil, err
	}

	all := append([]marginalia.Option{
		marginalia.WithRemote(remote),
		marginalia.WithLogger(logger),
	}, opts...)

	cache, err := marginalia.New(all...)
	if err != nil {
		remote.Close()
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return cache, nil
}
