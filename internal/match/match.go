// Package match defines the semantic matcher interface used to serve
// near-miss lookups from recently cached entries.
package match

// Matcher finds a recently cached key whose token set is close enough to a
// new request's to reuse its answer.
//
// Implementations must be safe for concurrent use and must never match
// across scopes: a window only ever contains keys observed in its own scope.
type Matcher interface {
	// Name returns a human-readable name for this matcher.
	Name() string

	// Observe records that storageKey was cached in scope with the given
	// normalized token set.
	Observe(scope, storageKey string, tokens []string)

	// Match returns the storage key of the best candidate in scope whose
	// similarity to tokens meets the matcher's threshold, along with its
	// score. Among equally scored candidates the earliest-observed one
	// wins. ok is false when no candidate qualifies.
	Match(scope string, tokens []string) (storageKey string, score float64, ok bool)

	// Remove drops a single key from its scope's window, used when the
	// entry has disappeared from every tier.
	Remove(scope, storageKey string)

	// DropBook drops every window whose scope belongs to the book prefix.
	DropBook(bookPrefix string)
}
