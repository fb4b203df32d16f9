// Package normalize provides query text normalization for cache key
// derivation and semantic fingerprinting.
package normalize

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalizer normalizes query text into canonical strings and token sets.
// The zero value is not usable; construct with New.
type Normalizer struct {
	stopWords map[string]struct{}
	synonyms  map[string]string
}

// New creates a Normalizer with the default stop-word and synonym tables.
// Entries in extraSynonyms are merged over the defaults; pass nil to use
// the defaults unchanged.
func New(extraSynonyms map[string]string) *Normalizer {
	n := &Normalizer{
		stopWords: defaultStopWords(),
		synonyms:  defaultSynonyms(),
	}
	for from, to := range extraSynonyms {
		n.synonyms[strings.ToLower(from)] = strings.ToLower(to)
	}
	return n
}

// Text returns the canonical form of query text used for exact-key hashing:
// lowercased, trimmed, with internal whitespace runs collapsed to single
// spaces. It performs no token-level rewriting, so distinct wordings stay
// distinct keys.
func (n *Normalizer) Text(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Tokens returns the semantic fingerprint of query text: the sorted set of
// normalized tokens after punctuation stripping, stop-word removal and
// synonym folding. Two differently worded questions about the same thing
// should produce overlapping token sets.
func (n *Normalizer) Tokens(s string) []string {
	words := strings.Fields(stripPunctuation(strings.ToLower(s)))

	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := n.stopWords[w]; stop {
			continue
		}
		if canonical, ok := n.synonyms[w]; ok {
			w = canonical
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}

	sort.Strings(tokens)
	return tokens
}

// Truncate caps s at maxBytes, backing off to the nearest rune boundary so
// the result is always valid UTF-8. The same input and cap always produce
// the same output. A cap <= 0 returns the empty string.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// stripPunctuation removes punctuation while keeping letters, digits,
// whitespace and intra-word hyphens.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			return r
		case r == '-':
			return r
		default:
			return -1
		}
	}, s)
}

// defaultStopWords returns the words dropped from fingerprints. Question
// words (what, why, how) are kept because they carry intent.
func defaultStopWords() map[string]struct{} {
	words := []string{
		"the", "a", "an", "and", "or", "but",
		"in", "on", "at", "to", "for", "of", "with", "by", "from",
		"up", "into", "through", "during",
		"is", "are", "was", "were", "be", "been", "being",
		"do", "does", "did",
		"i", "me", "my", "you", "your", "it", "its",
		"this", "that", "these", "those",
		"please", "tell",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// defaultSynonyms folds common variants in reading-assistant queries onto
// one canonical token.
func defaultSynonyms() map[string]string {
	return map[string]string{
		"novel":       "book",
		"volume":      "book",
		"bk":          "book",
		"author":      "writer",
		"chap":        "chapter",
		"pg":          "page",
		"pages":       "page",
		"summarise":   "summarize",
		"synopsis":    "summary",
		"define":      "definition",
		"meaning":     "definition",
		"mean":        "definition",
		"means":       "definition",
		"character":   "person",
		"protagonist": "person",
	}
}
