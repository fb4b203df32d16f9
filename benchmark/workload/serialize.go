package workload

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lecternlabs/marginalia/internal/seed"
)

// Save writes records as a JSONL corpus at path, compressed according to the
// file extension, with a manifest sidecar describing the mix.
func Save(path string, m Mix, seedVal int64, records []seed.Record) error {
	c, err := seed.CodecFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating corpus: %w", err)
	}

	cw, err := c.Writer(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("opening compressor: %w", err)
	}

	w := seed.NewWriter(cw)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			cw.Close()
			f.Close()
			return err
		}
	}
	if err := cw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flushing corpus: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing corpus: %w", err)
	}

	return seed.WriteManifest(path, &seed.Manifest{
		Version:     seed.ManifestVersion,
		Records:     int64(len(records)),
		Books:       m.Books,
		Mix:         m.Name,
		Seed:        seedVal,
		BuiltAt:     time.Now().UTC(),
		Compression: c.Extension(),
	})
}

// Load reads a workload corpus from any URI Open supports.
func Load(ctx context.Context, uri string, opts ...seed.OpenOption) ([]seed.Record, error) {
	rc, err := seed.Open(ctx, uri, opts...)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return seed.ReadAll(rc)
}
