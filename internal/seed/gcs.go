package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// openGCS opens a corpus object at "gs://bucket/object".
func openGCS(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, object, err := splitObjectURI(uri, "gs://")
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("corpus %s: %w", uri, os.ErrNotExist)
		}
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}

	return &chainCloser{ReadCloser: reader, next: client}, nil
}
