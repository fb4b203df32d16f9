// Package overlapmatch implements semantic matching as normalized token-set
// overlap (Jaccard similarity) over a bounded per-scope window of recently
// cached keys.
//
// This deliberately trades recall for predictability: no embeddings, no
// external calls, just set arithmetic over the most recent entries.
package overlapmatch

import (
	"strings"
	"sync"

	"github.com/lecternlabs/marginalia/internal/match"
)

// Compile-time check that Matcher implements match.Matcher.
var _ match.Matcher = (*Matcher)(nil)

// candidate is one window slot.
type candidate struct {
	key    string
	tokens map[string]struct{}
	seq    uint64
}

// Matcher holds per-scope recency windows. Safe for concurrent use.
type Matcher struct {
	mu         sync.RWMutex
	threshold  float64
	windowSize int
	seq        uint64
	scopes     map[string][]candidate
}

// New creates a Matcher. threshold is the minimum Jaccard similarity for a
// match; windowSize bounds how many recent keys each scope remembers.
func New(threshold float64, windowSize int) *Matcher {
	return &Matcher{
		threshold:  threshold,
		windowSize: windowSize,
		scopes:     make(map[string][]candidate),
	}
}

// Name returns the matcher name.
func (m *Matcher) Name() string {
	return "token-overlap"
}

// Observe records storageKey with its token set in the scope's window.
// Re-observing a key refreshes its tokens and recency but keeps its original
// insertion order for tie-breaking. When the window is full the oldest
// entry falls out.
func (m *Matcher) Observe(scope, storageKey string, tokens []string) {
	if m.windowSize <= 0 || len(tokens) == 0 {
		return
	}

	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.scopes[scope]

	for i := range window {
		if window[i].key == storageKey {
			refreshed := candidate{key: storageKey, tokens: set, seq: window[i].seq}
			window = append(append(window[:i], window[i+1:]...), refreshed)
			m.scopes[scope] = window
			return
		}
	}

	m.seq++
	window = append(window, candidate{key: storageKey, tokens: set, seq: m.seq})
	if len(window) > m.windowSize {
		window = window[len(window)-m.windowSize:]
	}
	m.scopes[scope] = window
}

// Match scans the scope's window for the best candidate at or above the
// threshold. Equal scores resolve to the earliest-observed candidate.
func (m *Matcher) Match(scope string, tokens []string) (string, float64, bool) {
	if len(tokens) == 0 {
		return "", 0, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		bestKey   string
		bestScore float64
		bestSeq   uint64
		found     bool
	)
	for _, cand := range m.scopes[scope] {
		score := jaccard(tokens, cand.tokens)
		if score < m.threshold || score == 0 {
			continue
		}
		if !found || score > bestScore || (score == bestScore && cand.seq < bestSeq) {
			bestKey, bestScore, bestSeq, found = cand.key, score, cand.seq, true
		}
	}
	return bestKey, bestScore, found
}

// Remove drops a single key from the scope's window.
func (m *Matcher) Remove(scope, storageKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.scopes[scope]
	for i := range window {
		if window[i].key == storageKey {
			window = append(window[:i], window[i+1:]...)
			break
		}
	}
	if len(window) == 0 {
		delete(m.scopes, scope)
		return
	}
	m.scopes[scope] = window
}

// DropBook discards every window whose scope starts with bookPrefix.
func (m *Matcher) DropBook(bookPrefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for scope := range m.scopes {
		if strings.HasPrefix(scope, bookPrefix) {
			delete(m.scopes, scope)
		}
	}
}

// jaccard computes intersection-over-union for a token slice and a token
// set. The slice is assumed deduplicated, as produced by normalize.
func jaccard(a []string, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for _, tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
