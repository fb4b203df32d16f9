// Package codec provides compression for cached payload envelopes and
// corpus files.
package codec

import "io"

// Codec provides compression and decompression, both over byte slices
// (cache envelopes) and streams (corpus files).
type Codec interface {
	// Encode compresses src into a new slice.
	Encode(src []byte) ([]byte, error)
	// Decode decompresses src into a new slice.
	Decode(src []byte) ([]byte, error)
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file extension without dot (e.g., "zst", "gz").
	// Returns empty string for no compression.
	Extension() string
}
