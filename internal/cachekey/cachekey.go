// Package cachekey derives cache keys and isolation scopes for assistant
// requests. Scope is part of the key material and of the storage key string,
// so entries from different users or books can never collide.
package cachekey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/lecternlabs/marginalia/internal/normalize"
)

// PublicOwner is the owner ID shared by all readers of a public book.
const PublicOwner = "public"

// Validation errors for malformed requests.
var (
	ErrEmptyQuery = errors.New("cachekey: empty query")
	ErrNoBook     = errors.New("cachekey: missing book ID")
	ErrNoUser     = errors.New("cachekey: missing user ID for private book")
)

// Scope identifies the isolation domain of a cache entry: one user's view
// of one book, or the shared view of a public book.
type Scope struct {
	Owner string
	Book  string
}

// String renders the scope as the storage key prefix "b:<book>:o:<owner>".
// The book comes first so per-book invalidation can match on a prefix.
func (s Scope) String() string {
	return "b:" + s.Book + ":o:" + s.Owner
}

// Key is the derived cache key for a request.
type Key struct {
	// Primary is the 64-bit exact-match hash, rendered as 16 hex digits.
	Primary string

	// Tokens is the normalized token set used for semantic matching.
	Tokens []string

	// Scope is the isolation domain the key belongs to.
	Scope Scope

	// Intent is the request intent the key was derived with. Semantic
	// matching segregates by intent so a rephrased question never gets an
	// answer of the wrong kind.
	Intent string
}

// Storage returns the full storage key string, scope prefix included.
// This is the key used in both cache tiers and in the coalescing gate.
func (k Key) Storage() string {
	return k.Scope.String() + ":" + k.Primary
}

// Input carries the request fields that participate in key derivation.
type Input struct {
	UserID    string
	BookID    string
	Public    bool
	Intent    string
	Query     string
	Selection string
	Chapter   int
}

// Generator derives keys from requests. Safe for concurrent use.
type Generator struct {
	norm         *normalize.Normalizer
	selectionCap int
}

// New creates a Generator. selectionCap bounds the selection text (in bytes)
// that participates in hashing; selections that differ only beyond the cap
// produce the same key.
func New(norm *normalize.Normalizer, selectionCap int) *Generator {
	return &Generator{norm: norm, selectionCap: selectionCap}
}

// Generate derives the key for a request. The query is normalized before
// hashing; an empty or whitespace-only query returns ErrEmptyQuery. Public
// requests collapse to the shared PublicOwner scope.
func (g *Generator) Generate(in Input) (Key, error) {
	query := g.norm.Text(in.Query)
	if query == "" {
		return Key{}, ErrEmptyQuery
	}

	book := strings.TrimSpace(in.BookID)
	if book == "" {
		return Key{}, ErrNoBook
	}

	owner := strings.TrimSpace(in.UserID)
	if in.Public {
		owner = PublicOwner
	} else if owner == "" {
		return Key{}, ErrNoUser
	}

	scope := Scope{Owner: sanitizeID(owner), Book: sanitizeID(book)}
	selection := normalize.Truncate(g.norm.Text(in.Selection), g.selectionCap)

	// Canonical composite with an unambiguous field separator. The raw IDs
	// feed the hash, not their sanitized forms.
	var b strings.Builder
	b.Grow(len(query) + len(selection) + 64)
	b.WriteString(owner)
	b.WriteByte(0x1f)
	b.WriteString(book)
	b.WriteByte(0x1f)
	b.WriteString(in.Intent)
	b.WriteByte(0x1f)
	b.WriteString(query)
	b.WriteByte(0x1f)
	b.WriteString(selection)
	b.WriteByte(0x1f)
	b.WriteString(strconv.Itoa(in.Chapter))

	return Key{
		Primary: fmt.Sprintf("%016x", xxhash.Sum64String(b.String())),
		Tokens:  g.norm.Tokens(in.Query),
		Scope:   scope,
		Intent:  in.Intent,
	}, nil
}

// BookPrefix returns the storage key prefix shared by every entry for a
// book, across all owners. Used for per-book invalidation.
func BookPrefix(bookID string) string {
	return "b:" + sanitizeID(strings.TrimSpace(bookID)) + ":"
}

// sanitizeID replaces characters that would break the key layout or Redis
// glob patterns. Distinct raw IDs that sanitize alike still hash apart in
// the primary key.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '[', ']', ' ', '\t', '\n', '\r':
			return '-'
		default:
			return r
		}
	}, id)
}
