package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"firerag/internal/domain"
	"firerag/internal/guard"
	"firerag/internal/port"
	"firerag/internal/prompt"
)

// ErrMalformedAnswer means the model reply could not be decoded into
// the structured answer shape even after the JSON-substring fallback.
var ErrMalformedAnswer = errors.New("unparseable model answer")

// Generator turns a question into a grounded answer: sanitize the
// question, retrieve context, ask the model, validate the structured
// reply.
type Generator struct {
	retriever *Retriever
	llm       port.LLM
	logger    *slog.Logger
}

// NewGenerator creates an answer generator.
func NewGenerator(retriever *Retriever, llm port.LLM, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		retriever: retriever,
		llm:       llm,
		logger:    logger,
	}
}

// Answer runs the full question pipeline. Questions the index cannot
// support yield the canonical no-information answer, not an error.
func (g *Generator) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	question, err := guard.SanitizeQuestion(question)
	if err != nil {
		return nil, err
	}

	result, err := g.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if result == nil {
		g.logger.Info("no relevant content for question", "question", question)
		answer := domain.NoInformationAnswer()
		return &answer, nil
	}

	userPrompt, err := prompt.AnswerUser(question, result.Context, result.Pages, result.Media)
	if err != nil {
		return nil, fmt.Errorf("failed to render answer prompt: %w", err)
	}

	raw, err := g.llm.Generate(ctx, prompt.AnswerSystem(), userPrompt)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	answer, err := parseAnswer(raw)
	if err != nil {
		return nil, err
	}

	if answer.Mode == domain.AnswerModeNoInformation {
		g.logger.Info("model declined to answer", "question", question)
		canonical := domain.NoInformationAnswer()
		return &canonical, nil
	}
	answer.Mode = domain.AnswerModeAnswer

	if err := guard.ValidateAnswer(answer, allowedLinks(result.Pages), result.Media); err != nil {
		return nil, err
	}

	return answer, nil
}

// parseAnswer decodes the model reply, tolerating prose around the
// JSON object.
func parseAnswer(raw string) (*domain.Answer, error) {
	var answer domain.Answer
	if err := json.Unmarshal([]byte(raw), &answer); err == nil {
		return &answer, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &answer); err == nil {
			return &answer, nil
		}
	}

	preview := raw
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return nil, fmt.Errorf("%w: %q", ErrMalformedAnswer, preview)
}

// allowedLinks builds the page links an answer is permitted to cite.
func allowedLinks(pages []int) []string {
	links := make([]string, len(pages))
	for i, p := range pages {
		links[i] = domain.PageLink(p)
	}
	return links
}
