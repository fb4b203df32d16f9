package cachekey

import (
	"errors"
	"strings"
	"testing"

	"github.com/lecternlabs/marginalia/internal/normalize"
)

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	return New(normalize.New(nil), 1024)
}

func baseInput() Input {
	return Input{
		UserID: "user-1",
		BookID: "book-9",
		Intent: "chat",
		Query:  "What does the green light mean?",
	}
}

func TestGenerator_Generate_Deterministic(t *testing.T) {
	g := newGenerator(t)

	first, err := g.Generate(baseInput())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := g.Generate(baseInput())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if again.Primary != first.Primary || again.Storage() != first.Storage() {
			t.Fatalf("Generate() not deterministic: %q vs %q", again.Storage(), first.Storage())
		}
	}
	if len(first.Primary) != 16 {
		t.Errorf("Primary = %q, want 16 hex digits", first.Primary)
	}
}

func TestGenerator_Generate_NormalizationCollapses(t *testing.T) {
	g := newGenerator(t)

	a, err := g.Generate(baseInput())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	in := baseInput()
	in.Query = "  WHAT   does the green light MEAN?  "
	b, err := g.Generate(in)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if a.Primary != b.Primary {
		t.Errorf("case/whitespace variants produced different keys: %q vs %q", a.Primary, b.Primary)
	}
}

func TestGenerator_Generate_FieldsDistinguishKeys(t *testing.T) {
	g := newGenerator(t)
	base, err := g.Generate(baseInput())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"different user", func(in *Input) { in.UserID = "user-2" }},
		{"different book", func(in *Input) { in.BookID = "book-10" }},
		{"different intent", func(in *Input) { in.Intent = "translate" }},
		{"different query", func(in *Input) { in.Query = "who is nick carraway" }},
		{"different chapter", func(in *Input) { in.Chapter = 3 }},
		{"different selection", func(in *Input) { in.Selection = "so we beat on" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)
			got, err := g.Generate(in)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got.Storage() == base.Storage() {
				t.Errorf("expected distinct key for %s", tt.name)
			}
		})
	}
}

func TestGenerator_Generate_PublicCollapsesOwner(t *testing.T) {
	g := newGenerator(t)

	a := baseInput()
	a.Public = true
	b := baseInput()
	b.Public = true
	b.UserID = "user-2"

	ka, err := g.Generate(a)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	kb, err := g.Generate(b)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if ka.Storage() != kb.Storage() {
		t.Errorf("public requests from different users should share a key: %q vs %q", ka.Storage(), kb.Storage())
	}
	if ka.Scope.Owner != PublicOwner {
		t.Errorf("Scope.Owner = %q, want %q", ka.Scope.Owner, PublicOwner)
	}
}

func TestGenerator_Generate_SelectionCap(t *testing.T) {
	g := New(normalize.New(nil), 32)

	long := strings.Repeat("in my younger and more vulnerable years ", 20)
	a := baseInput()
	a.Selection = long
	b := baseInput()
	b.Selection = long + "a different tail beyond the cap"

	ka, err := g.Generate(a)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	kb, err := g.Generate(b)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if ka.Primary != kb.Primary {
		t.Errorf("selections differing beyond the cap should share a key")
	}
}

func TestGenerator_Generate_Validation(t *testing.T) {
	g := newGenerator(t)

	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr error
	}{
		{"empty query", func(in *Input) { in.Query = "" }, ErrEmptyQuery},
		{"whitespace query", func(in *Input) { in.Query = " \t\n" }, ErrEmptyQuery},
		{"missing book", func(in *Input) { in.BookID = "  " }, ErrNoBook},
		{"missing user private", func(in *Input) { in.UserID = "" }, ErrNoUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)
			if _, err := g.Generate(in); !errors.Is(err, tt.wantErr) {
				t.Errorf("Generate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerator_Generate_MissingUserPublicOK(t *testing.T) {
	g := newGenerator(t)

	in := baseInput()
	in.UserID = ""
	in.Public = true
	if _, err := g.Generate(in); err != nil {
		t.Errorf("Generate() error = %v, want nil for public request without user", err)
	}
}

func TestGenerator_Generate_SanitizesIDs(t *testing.T) {
	g := newGenerator(t)

	in := baseInput()
	in.UserID = "user:with*glob"
	in.BookID = "book id?"

	key, err := g.Generate(in)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	storage := key.Storage()
	for _, c := range []string{"*", "?", "[", " "} {
		if strings.Contains(storage, c) {
			t.Errorf("storage key %q contains %q", storage, c)
		}
	}
	// All colons come from the layout, not the IDs.
	if got := strings.Count(storage, ":"); got != 3 {
		t.Errorf("storage key %q has %d colons, want 3", storage, got)
	}
}

func TestBookPrefix_MatchesStorage(t *testing.T) {
	g := newGenerator(t)

	key, err := g.Generate(baseInput())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	prefix := BookPrefix("book-9")
	if !strings.HasPrefix(key.Storage(), prefix) {
		t.Errorf("storage key %q does not start with book prefix %q", key.Storage(), prefix)
	}
	if strings.HasPrefix(key.Storage(), BookPrefix("book-10")) {
		t.Errorf("storage key %q matches the wrong book prefix", key.Storage())
	}
}
