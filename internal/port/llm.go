package port

import "context"

// LLM represents a chat-completion language model.
type LLM interface {
	// Generate produces a completion for the user prompt under the given
	// system prompt. Implementations honor ctx deadlines and issue the
	// call at temperature zero.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
