package marginalia

// Answer is a generated assistant response with its production cost.
type Answer struct {
	// Content is the response text shown to the user.
	Content string `json:"content"`

	// TokensUsed is the model token count spent producing the answer.
	TokensUsed int `json:"tokensUsed,omitempty"`

	// CostUSD is the provider cost of producing the answer.
	CostUSD float64 `json:"costUsd,omitempty"`
}

// Tier identifies where an answer came from.
type Tier string

const (
	// TierL1 is the private in-process tier.
	TierL1 Tier = "l1"

	// TierL2 is the shared remote tier.
	TierL2 Tier = "l2"

	// TierSemantic is a rephrased-question match against a recently cached
	// answer.
	TierSemantic Tier = "semantic"

	// TierGenerated means the generator produced the answer.
	TierGenerated Tier = "generated"
)

// Result is the outcome of a cache operation.
type Result struct {
	// Answer is the response. Zero on a plain Get miss.
	Answer Answer

	// Tier says which tier served the answer. Empty on a plain Get miss.
	Tier Tier

	// Hit is true when the answer came from the cache rather than the
	// generator.
	Hit bool

	// Score is the similarity of a semantic match, in (0, 1]. Zero for
	// other tiers.
	Score float64

	// Coalesced is true when this caller waited on another caller's
	// generation instead of running its own.
	Coalesced bool
}
