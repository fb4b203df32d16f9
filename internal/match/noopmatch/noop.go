// Package noopmatch disables semantic matching.
package noopmatch

import "github.com/lecternlabs/marginalia/internal/match"

// Compile-time check that Matcher implements match.Matcher.
var _ match.Matcher = (*Matcher)(nil)

// Matcher never matches anything.
type Matcher struct{}

// New creates a no-op matcher.
func New() *Matcher {
	return &Matcher{}
}

// Name returns the matcher name.
func (m *Matcher) Name() string {
	return "none"
}

func (m *Matcher) Observe(scope, storageKey string, tokens []string) {}

func (m *Matcher) Match(scope string, tokens []string) (string, float64, bool) {
	return "", 0, false
}

func (m *Matcher) Remove(scope, storageKey string) {}

func (m *Matcher) DropBook(bookPrefix string) {}
