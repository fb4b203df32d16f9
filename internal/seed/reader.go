package seed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/lecternlabs/marginalia/internal/codec"
	"github.com/lecternlabs/marginalia/internal/codec/gzipcodec"
	"github.com/lecternlabs/marginalia/internal/codec/noopcodec"
	"github.com/lecternlabs/marginalia/internal/codec/zstdcodec"
)

// maxLineBytes bounds a single corpus line. Answers can be long but a line
// past this size is a broken corpus, not a big answer.
const maxLineBytes = 10 * 1024 * 1024

// Reader streams records from a JSONL corpus.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader reads records from r. The stream must already be decompressed;
// use Open to get one from a URI.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{scanner: scanner}
}

// Next returns the next record. It skips blank lines, validates each record,
// and returns io.EOF when the corpus is exhausted.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, fmt.Errorf("line %d: parsing record: %w", r.line, err)
		}
		if err := rec.Validate(); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("reading corpus: %w", err)
	}
	return Record{}, io.EOF
}

// Line returns the line number of the most recently returned record.
func (r *Reader) Line() int {
	return r.line
}

// ReadAll reads an entire corpus into memory.
func ReadAll(r io.Reader) ([]Record, error) {
	sr := NewReader(r)
	var records []Record
	for {
		rec, err := sr.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// Writer writes records as JSONL.
type Writer struct {
	enc *json.Encoder
}

// NewWriter writes records to w. Compression, if any, is the caller's
// concern; pair with a codec Writer for compressed corpora.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write validates and appends one record.
func (w *Writer) Write(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return nil
}

// CodecFor returns the codec matching a corpus filename. Unknown extensions
// get the pass-through codec.
func CodecFor(name string) (codec.Codec, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".zst":
		return zstdcodec.New()
	case ".gz":
		return gzipcodec.New(), nil
	default:
		return noopcodec.New(), nil
	}
}
