package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// OpenOption configures Open.
type OpenOption func(*opener)

type opener struct {
	httpClient *http.Client
	s3Region   string
	s3Endpoint string
}

// WithOpenHTTPClient sets the HTTP client used for http and https URIs.
func WithOpenHTTPClient(client *http.Client) OpenOption {
	return func(o *opener) { o.httpClient = client }
}

// WithS3Region sets the AWS region for s3 URIs.
func WithS3Region(region string) OpenOption {
	return func(o *opener) { o.s3Region = region }
}

// WithS3Endpoint sets a custom endpoint for s3 URIs (MinIO and friends).
func WithS3Endpoint(endpoint string) OpenOption {
	return func(o *opener) { o.s3Endpoint = endpoint }
}

// Open opens the corpus at uri and decompresses it according to the filename
// extension. Supported locations are local paths, http(s) URLs, s3://bucket/key
// objects and gs://bucket/object objects. The caller must close the returned
// reader.
func Open(ctx context.Context, uri string, opts ...OpenOption) (io.ReadCloser, error) {
	var o opener
	for _, opt := range opts {
		opt(&o)
	}

	raw, name, err := o.openRaw(ctx, uri)
	if err != nil {
		return nil, err
	}

	c, err := CodecFor(name)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("corpus codec: %w", err)
	}
	dec, err := c.Reader(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("decompressing corpus: %w", err)
	}
	return &chainCloser{ReadCloser: dec, next: raw}, nil
}

// openRaw opens the undecoded byte stream and reports the filename to use
// for codec detection.
func (o *opener) openRaw(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		rc, err := openS3(ctx, uri, o.s3Region, o.s3Endpoint)
		return rc, uri, err

	case strings.HasPrefix(uri, "gs://"):
		rc, err := openGCS(ctx, uri)
		return rc, uri, err

	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		u, err := url.Parse(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parsing corpus URL: %w", err)
		}
		var fopts []FetcherOption
		if o.httpClient != nil {
			fopts = append(fopts, WithHTTPClient(o.httpClient))
		}
		rc, err := NewFetcher(fopts...).Stream(ctx, uri)
		return rc, u.Path, err

	default:
		f, err := os.Open(uri)
		if err != nil {
			return nil, "", fmt.Errorf("opening corpus: %w", err)
		}
		return f, uri, nil
	}
}

// splitObjectURI parses "scheme://bucket/object" into bucket and object.
func splitObjectURI(uri, scheme string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(uri, scheme)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid corpus URI %q: missing bucket", uri)
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid corpus URI %q: missing object", uri)
	}
	return parts[0], parts[1], nil
}

// chainCloser closes a decoder and then the stream underneath it.
type chainCloser struct {
	io.ReadCloser
	next io.Closer
}

func (c *chainCloser) Close() error {
	err := c.ReadCloser.Close()
	if nerr := c.next.Close(); err == nil {
		err = nerr
	}
	return err
}
