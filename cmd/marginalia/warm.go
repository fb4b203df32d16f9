package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lecternlabs/marginalia/internal/seed"
	"github.com/lecternlabs/marginalia/internal/warm"
)

var warmCmd = &cobra.Command{
	Use:   "warm [CORPUS]",
	Short: "Pre-populate the cache from a seed corpus",
	Long: `Load a JSONL corpus of question and answer records into the cache.

The corpus can live on the local filesystem, behind HTTP(S), in S3 or in
GCS. Compressed corpora are detected by extension (.zst, .gz).

Examples:
  # Local, compressed
  marginalia warm ./corpus.jsonl.zst

  # Straight from object storage
  marginalia warm s3://assistant-data/corpora/gatsby.jsonl.zst --s3-region eu-west-1
  marginalia warm gs://assistant-data/corpora/gatsby.jsonl.zst

  # Download large HTTP corpora to disk first; interrupted fetches resume
  marginalia warm https://assistant-data.example.com/corpus.jsonl.zst --download-dir ./corpora`,
	Args: cobra.ExactArgs(1),
	RunE: runWarm,
}

var (
	warmWorkers int
	s3Region    string
	s3Endpoint  string
	downloadDir string
)

func init() {
	warmCmd.Flags().IntVar(&warmWorkers, "workers", warm.DefaultWorkers, "number of parallel loads")
	warmCmd.Flags().StringVar(&s3Region, "s3-region", "", "region for s3:// corpora")
	warmCmd.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "custom S3 endpoint (MinIO and friends)")
	warmCmd.Flags().StringVar(&downloadDir, "download-dir", "", "download HTTP(S) corpora here before loading")
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	uri := args[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, stopping...")
		cancel()
	}()

	logger := newLogger()
	cache, err := newCache(logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	if downloadDir != "" && strings.HasPrefix(uri, "http") {
		local, err := download(ctx, uri)
		if err != nil {
			return err
		}
		uri = local
	}

	w := warm.New(cache,
		warm.WithWorkers(warmWorkers),
		warm.WithProgress(seed.DefaultProgressFunc),
		warm.WithLogger(logger),
	)

	res, err := w.RunURI(ctx, uri,
		seed.WithS3Region(s3Region),
		seed.WithS3Endpoint(s3Endpoint),
	)
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Warmed %d entries in %s", res.Loaded, res.Elapsed.Round(res.Elapsed/100))
	if res.Skipped > 0 {
		fmt.Printf(", %d invalid records skipped", res.Skipped)
	}
	fmt.Println()

	if res.Failed > 0 {
		return fmt.Errorf("%d records failed to load", res.Failed)
	}
	return nil
}

// download fetches an HTTP corpus into the download directory, resuming a
// partial file when one is present.
func download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing corpus URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("corpus URL %s has no file name", rawURL)
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	dest := filepath.Join(downloadDir, name)

	fetcher := seed.NewFetcher()
	if err := fetcher.DownloadToFile(ctx, rawURL, dest, seed.DefaultProgressFunc); err != nil {
		return "", err
	}
	fmt.Println()
	return dest, nil
}
