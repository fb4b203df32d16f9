package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultResponseHeaderTimeout is the default timeout for receiving response
// headers. There is no overall request timeout; large corpora take as long
// as they take and cancellation runs through the context.
const DefaultResponseHeaderTimeout = 30 * time.Second

// Fetcher downloads corpus files over HTTP with resume support.
type Fetcher struct {
	client *http.Client
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a Fetcher with sensible defaults.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stream opens url for reading without resume support.
func (f *Fetcher) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching corpus: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching corpus: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// open starts a download, resuming from existingSize when the server honors
// range requests. Returns the body and the total corpus size.
func (f *Fetcher) open(ctx context.Context, url string, existingSize int64) (io.ReadCloser, int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, false, fmt.Errorf("creating request: %w", err)
	}
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, false, fmt.Errorf("downloading: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, 0, false, fmt.Errorf("downloading: unexpected status %s", resp.Status)
	}

	resumed := resp.StatusCode == http.StatusPartialContent
	var totalSize int64
	if resumed {
		// Content-Range: bytes 100-999/1000
		var start, end int64
		if _, err := fmt.Sscanf(resp.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &totalSize); err != nil {
			totalSize = existingSize + resp.ContentLength
		}
	} else {
		totalSize = resp.ContentLength
	}
	return resp.Body, totalSize, resumed, nil
}

// DownloadToFile downloads url to destPath, resuming a partial file when the
// server supports range requests.
func (f *Fetcher) DownloadToFile(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	var existingSize int64
	if info, err := os.Stat(destPath); err == nil {
		existingSize = info.Size()
	}

	body, totalSize, resumed, err := f.open(ctx, url, existingSize)
	if err != nil {
		return err
	}
	defer body.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if resumed {
		flags = os.O_WRONLY | os.O_APPEND
	} else {
		existingSize = 0
	}

	file, err := os.OpenFile(destPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 32*1024)
	downloaded := existingSize
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("writing file: %w", writeErr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(Progress{
					Phase:        "fetch",
					BytesFetched: downloaded,
					BytesTotal:   totalSize,
					StartTime:    start,
				})
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
	}
}
