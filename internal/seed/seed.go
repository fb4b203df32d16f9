// Package seed loads answer corpora used to pre-populate a cache.
//
// A corpus is a JSONL file, one record per line, optionally compressed
// (detected by extension). Corpora live on local disk, behind HTTP, or in
// S3/GCS buckets; Open hides the difference.
package seed

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord marks records that fail validation.
var ErrInvalidRecord = errors.New("seed: invalid record")

// Record is one pre-computed answer in a seed corpus.
type Record struct {
	UserID     string  `json:"userId,omitempty"`
	BookID     string  `json:"bookId"`
	Public     bool    `json:"public,omitempty"`
	Intent     string  `json:"intent,omitempty"`
	Query      string  `json:"query"`
	Selection  string  `json:"selection,omitempty"`
	Chapter    int     `json:"chapter,omitempty"`
	Answer     string  `json:"answer"`
	TokensUsed int     `json:"tokensUsed,omitempty"`
	CostUSD    float64 `json:"costUsd,omitempty"`
	TTLSeconds int     `json:"ttlSeconds,omitempty"`
}

// Validate reports whether the record can be turned into a cache entry.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: missing query", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.BookID) == "" {
		return fmt.Errorf("%w: missing bookId", ErrInvalidRecord)
	}
	if !r.Public && strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: private record without userId", ErrInvalidRecord)
	}
	if r.Answer == "" {
		return fmt.Errorf("%w: missing answer", ErrInvalidRecord)
	}
	if r.TTLSeconds < 0 {
		return fmt.Errorf("%w: negative ttlSeconds", ErrInvalidRecord)
	}
	return nil
}
