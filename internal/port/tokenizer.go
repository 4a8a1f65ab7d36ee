package port

// Tokenizer normalizes regulation prose into index terms. Queries and
// stored postings must go through the same instance so both sides
// normalize identically.
type Tokenizer interface {
	Tokenize(text string) []string

	// CountTokens estimates the model-token cost of text, used by the
	// context budget.
	CountTokens(text string) int
}
