// Package workload generates synthetic reading-assistant traffic for
// benchmarking the cache. Mixes are deterministic for a given seed so two
// configurations can be measured against identical request streams.
package workload

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/internal/seed"
)

// Mix describes the shape of a synthetic traffic stream.
type Mix struct {
	// Name labels the mix in manifests and reports.
	Name string

	// Books is the number of distinct books queried.
	Books int

	// Users is the size of the reader pool.
	Users int

	// PublicRatio is the fraction of books visible to every reader.
	PublicRatio float64

	// QueriesPerBook is the number of distinct questions per book.
	QueriesPerBook int

	// RepeatWeight is the probability a request repeats an earlier
	// question verbatim.
	RepeatWeight float64

	// RephraseWeight is the probability a request rewords an earlier
	// question. Rephrasings share content words with their original so
	// the semantic matcher can recognize them.
	RephraseWeight float64

	// SelectionWeight is the fraction of questions anchored to a passage
	// selected from the book.
	SelectionWeight float64
}

// SimpleQueries is a small hot set: few books, heavy verbatim repetition.
// Most of the stream should come back from the cache.
func SimpleQueries() Mix {
	return Mix{
		Name:           "Simple Queries",
		Books:          4,
		Users:          16,
		PublicRatio:    0.5,
		QueriesPerBook: 12,
		RepeatWeight:   0.72,
		RephraseWeight: 0.12,
	}
}

// MixedComplexity spreads traffic over more readers and books, rewords
// questions more often, and anchors some of them to selections.
func MixedComplexity() Mix {
	return Mix{
		Name:            "Mixed Complexity",
		Books:           24,
		Users:           60,
		PublicRatio:     0.35,
		QueriesPerBook:  30,
		RepeatWeight:    0.40,
		RephraseWeight:  0.25,
		SelectionWeight: 0.30,
	}
}

// Mixes returns the named mixes the bench CLI knows about.
func Mixes() []Mix {
	return []Mix{SimpleQueries(), MixedComplexity()}
}

// ByName returns the mix with the given name.
func ByName(name string) (Mix, bool) {
	for _, m := range Mixes() {
		if m.Name == name {
			return m, true
		}
	}
	return Mix{}, false
}

// query is one logical question about a book. Chapter, selection and intent
// are fixed per question so a repeat produces the same cache key.
type query struct {
	base      string
	rephrases []string
	chapter   int
	selection string
	intent    marginalia.Intent
}

// book is one synthetic book with its question pool.
type book struct {
	id     string
	title  string
	owner  string
	public bool
	pool   []query

	// issued tracks pool indices that appeared in the stream, in order.
	issued []int
	seen   map[int]bool
	next   int
}

// Generate produces n records of deterministic traffic for the mix. The
// same mix, seed and n always produce the same stream.
func (m Mix) Generate(seedVal int64, n int) []seed.Record {
	rng := rand.New(rand.NewSource(seedVal))

	users := make([]string, m.Users)
	for i := range users {
		users[i] = "reader-" + shortID(rng)
	}

	books := make([]*book, m.Books)
	for i := range books {
		b := &book{
			id:     "book-" + shortID(rng),
			title:  bookTitles[i%len(bookTitles)],
			owner:  users[rng.Intn(len(users))],
			public: rng.Float64() < m.PublicRatio,
			seen:   make(map[int]bool),
		}
		b.pool = buildQueryPool(rng, m.QueriesPerBook, m.SelectionWeight)
		books[i] = b
	}

	records := make([]seed.Record, 0, n)
	for len(records) < n {
		b := books[rng.Intn(len(books))]
		idx, text := b.draw(rng, m)

		q := b.pool[idx]
		rec := seed.Record{
			BookID:    b.id,
			Public:    b.public,
			Intent:    string(q.intent),
			Query:     text,
			Selection: q.selection,
			Chapter:   q.chapter,
			Answer:    answerFor(b, q),
		}
		if b.public {
			rec.UserID = users[rng.Intn(len(users))]
		} else {
			rec.UserID = b.owner
		}
		rec.TokensUsed = 60 + rng.Intn(240)
		rec.CostUSD = float64(rec.TokensUsed) * 0.000003

		records = append(records, rec)
	}
	return records
}

// draw picks the next question for a book and returns its pool index and
// the text to send, which is the original wording or a rephrasing.
func (b *book) draw(rng *rand.Rand, m Mix) (int, string) {
	roll := rng.Float64()

	if len(b.issued) > 0 {
		if roll < m.RepeatWeight {
			idx := b.issued[rng.Intn(len(b.issued))]
			return idx, b.pool[idx].base
		}
		if roll < m.RepeatWeight+m.RephraseWeight {
			idx := b.issued[rng.Intn(len(b.issued))]
			q := b.pool[idx]
			if len(q.rephrases) > 0 {
				return idx, q.rephrases[rng.Intn(len(q.rephrases))]
			}
			return idx, q.base
		}
	}

	idx := b.next % len(b.pool)
	b.next++
	if !b.seen[idx] {
		b.seen[idx] = true
		b.issued = append(b.issued, idx)
	}
	return idx, b.pool[idx].base
}

// answerFor synthesizes a stable answer for a question, so replays can
// verify that hits return what was generated.
func answerFor(b *book, q query) string {
	return fmt.Sprintf("From the reading notes for %s: %s", b.title, q.base)
}

// shortID derives an eight-character ID from the stream's own randomness,
// so generated workloads stay reproducible.
func shortID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		// rand.Rand never fails to read.
		panic(err)
	}
	return id.String()[:8]
}

var bookTitles = []string{
	"The Great Gatsby",
	"Moby-Dick",
	"Middlemarch",
	"Bleak House",
	"Persuasion",
	"Frankenstein",
	"Dracula",
	"Walden",
}

var characterNames = []string{
	"Gatsby", "Daisy", "Ishmael", "Ahab", "Dorothea",
	"Esther", "Anne", "Wentworth", "Mina", "Renfield",
}

var definedWords = []string{
	"hubris", "soliloquy", "leitmotif", "quixotic",
	"verdigris", "pastoral", "picaresque",
}

var significantThings = []string{
	"green light", "white whale", "letter", "garden",
	"lighthouse", "portrait", "storm",
}

var selections = []string{
	"It was the best of times, it was the worst of times",
	"Call me Ishmael",
	"In my younger and more vulnerable years my father gave me some advice",
	"It is a truth universally acknowledged",
	"Last night I dreamt I went to Manderley again",
}

// queryMakers build question instances. Rephrasings are written to keep
// the content words of their original, since stop words are dropped and
// common variants folded before matching.
var queryMakers = []func(rng *rand.Rand) query{
	func(rng *rand.Rand) query {
		ch := 1 + rng.Intn(40)
		return query{
			base: fmt.Sprintf("What happens in chapter %d?", ch),
			rephrases: []string{
				fmt.Sprintf("Tell me what happens in chapter %d", ch),
				fmt.Sprintf("What happens during chapter %d?", ch),
			},
			chapter: ch,
			intent:  marginalia.IntentChat,
		}
	},
	func(rng *rand.Rand) query {
		name := characterNames[rng.Intn(len(characterNames))]
		return query{
			base: fmt.Sprintf("Who is %s?", name),
			rephrases: []string{
				fmt.Sprintf("Who is the character %s?", name),
				fmt.Sprintf("Tell me who %s is", name),
			},
			intent: marginalia.IntentChat,
		}
	},
	func(rng *rand.Rand) query {
		word := definedWords[rng.Intn(len(definedWords))]
		return query{
			base: fmt.Sprintf("What does %s mean?", word),
			rephrases: []string{
				fmt.Sprintf("What is the meaning of %s?", word),
				fmt.Sprintf("Define %s for me", word),
			},
			intent: marginalia.IntentKnowledge,
		}
	},
	func(rng *rand.Rand) query {
		return query{
			base: "Summarize the themes of this book",
			rephrases: []string{
				"Summarise the themes in the novel",
				"Summarize the book themes",
			},
			intent: marginalia.IntentChat,
		}
	},
	func(rng *rand.Rand) query {
		thing := significantThings[rng.Intn(len(significantThings))]
		return query{
			base: fmt.Sprintf("What is the significance of the %s?", thing),
			rephrases: []string{
				fmt.Sprintf("Tell me the significance of the %s", thing),
				fmt.Sprintf("What is the significance of the %s in the book?", thing),
			},
			intent: marginalia.IntentChat,
		}
	},
}

// buildQueryPool makes count distinct questions. A slice of the pool is
// anchored to selections when selectionWeight is positive.
func buildQueryPool(rng *rand.Rand, count int, selectionWeight float64) []query {
	pool := make([]query, 0, count)
	seen := make(map[string]bool, count)

	for attempts := 0; len(pool) < count && attempts < count*50; attempts++ {
		q := queryMakers[rng.Intn(len(queryMakers))](rng)
		if seen[q.base] {
			continue
		}
		seen[q.base] = true

		if rng.Float64() < selectionWeight {
			q.selection = selections[rng.Intn(len(selections))]
			if rng.Float64() < 0.3 {
				q.intent = marginalia.IntentTranslate
			} else {
				q.intent = marginalia.IntentKnowledge
			}
		}
		pool = append(pool, q)
	}
	return pool
}
