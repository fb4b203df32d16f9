package marginalia

import "strings"

// Intent classifies what kind of answer a request wants. Requests with
// different intents cache separately even for identical queries.
type Intent string

// Known intents.
const (
	// IntentChat is a conversational question about the book.
	IntentChat Intent = "chat"

	// IntentKnowledge is a factual or encyclopedic question.
	IntentKnowledge Intent = "knowledge"

	// IntentTranslate asks for a translation of the selection.
	IntentTranslate Intent = "translate"
)

// ParseIntent maps a free-form intent string onto the known set.
// Empty and unknown values fall back to IntentChat.
func ParseIntent(s string) Intent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(IntentKnowledge):
		return IntentKnowledge
	case string(IntentTranslate):
		return IntentTranslate
	default:
		return IntentChat
	}
}

// Request identifies one assistant question. UserID, BookID and Public fix
// the visibility scope; Query, Selection, Chapter and Intent fix the
// question itself.
type Request struct {
	// UserID is the asking user. Required unless Public is set.
	UserID string

	// BookID is the book the question is about. Required.
	BookID string

	// Public marks the book as shared: all users of a public book see the
	// same cached answers, and UserID does not participate in the key.
	Public bool

	// Intent selects the answer style. Zero value behaves as IntentChat.
	Intent Intent

	// Query is the user's question. Required.
	Query string

	// Selection is the highlighted passage the question refers to, if any.
	// Only a bounded prefix participates in caching.
	Selection string

	// Chapter is the chapter the user is reading, when known.
	Chapter int
}
