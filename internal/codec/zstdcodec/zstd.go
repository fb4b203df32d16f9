// Package zstdcodec provides a zstd compression codec. This is the default
// codec for cache envelopes: assistant answers are prose and compress well,
// and zstd keeps the decode cost on the read path low.
package zstdcodec

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/lecternlabs/marginalia/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements zstd compression. The shared encoder and decoder
// support concurrent EncodeAll/DecodeAll calls.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New returns a new zstd codec.
func New() (*Codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Encode compresses src with zstd.
func (c *Codec) Encode(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}

// Decode decompresses zstd data.
func (c *Codec) Decode(src []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, nil)
}

// Reader wraps r to decompress zstd data.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// Writer wraps w to compress data with zstd.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

// Extension returns "zst".
func (c *Codec) Extension() string {
	return "zst"
}
