// Package guard enforces input and output guardrails around answer
// generation: question sanitization, prompt-injection rejection, and
// structural plus provenance checks on generated answers.
package guard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"firerag/internal/domain"
)

const (
	MinQuestionLen = 3
	MaxQuestionLen = 500

	minTitleLen   = 5
	minSummaryLen = 10
	maxSummaryLen = 2000
	maxSteps      = 10
	maxLinks      = 10
	maxMedia      = 5
)

// ErrAnswerRejected marks a generated answer that failed structural
// validation.
var ErrAnswerRejected = errors.New("answer rejected by guardrails")

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+.*(previous|above|all).*instructions?`),
	regexp.MustCompile(`you\s+are\s+now`),
	regexp.MustCompile(`new\s+instructions?`),
	regexp.MustCompile(`system\s*:\s*you`),
	regexp.MustCompile(`<\s*script\s*>`),
	regexp.MustCompile(`javascript:`),
	regexp.MustCompile(`eval\s*\(`),
	regexp.MustCompile(`exec\s*\(`),
	regexp.MustCompile(`__import__`),
	regexp.MustCompile(`forget\s+(everything|all)`),
	regexp.MustCompile(`disregard\s+(previous|above)`),
	regexp.MustCompile(`override\s+your`),
	regexp.MustCompile(`new\s+role`),
	regexp.MustCompile(`act\s+as\s+if`),
}

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	htmlTags     = regexp.MustCompile(`<[^>]+>`)
	braceChars   = regexp.MustCompile(`[{}\[\]\\]`)
)

// SanitizeQuestion validates the raw question and returns a normalized
// form safe to embed in prompts. Safety checks run against the raw
// input before any normalization.
func SanitizeQuestion(question string) (string, error) {
	length := utf8.RuneCountInString(strings.TrimSpace(question))
	if length < MinQuestionLen {
		return "", fmt.Errorf("%w: question too short (min %d chars)", domain.ErrInvalidQuery, MinQuestionLen)
	}
	if length > MaxQuestionLen {
		return "", fmt.Errorf("%w: question too long (max %d chars)", domain.ErrInvalidQuery, MaxQuestionLen)
	}

	lower := strings.ToLower(question)
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(lower) {
			return "", fmt.Errorf("%w: question contains a blocked pattern", domain.ErrInvalidQuery)
		}
	}

	sanitized := strings.Join(strings.Fields(question), " ")
	sanitized = controlChars.ReplaceAllString(sanitized, "")
	sanitized = htmlTags.ReplaceAllString(sanitized, "")
	sanitized = braceChars.ReplaceAllString(sanitized, "")
	sanitized = strings.TrimSpace(sanitized)

	if utf8.RuneCountInString(sanitized) < MinQuestionLen {
		return "", fmt.Errorf("%w: question too short after sanitization", domain.ErrInvalidQuery)
	}

	return sanitized, nil
}

// ValidateAnswer enforces structural quality on a generated answer and
// restricts its references to what retrieval provided. Links and media
// outside the allowed sets are dropped; structural violations reject
// the whole answer.
func ValidateAnswer(answer *domain.Answer, allowedLinks, allowedMedia []string) error {
	title := strings.TrimSpace(answer.Body.Title)
	if utf8.RuneCountInString(title) < minTitleLen {
		return fmt.Errorf("%w: title too short", ErrAnswerRejected)
	}

	summary := strings.TrimSpace(answer.Body.Summary)
	if n := utf8.RuneCountInString(summary); n < minSummaryLen || n > maxSummaryLen {
		return fmt.Errorf("%w: summary length %d outside %d..%d", ErrAnswerRejected, n, minSummaryLen, maxSummaryLen)
	}

	if len(answer.Body.Steps) > maxSteps {
		return fmt.Errorf("%w: %d steps exceeds %d", ErrAnswerRejected, len(answer.Body.Steps), maxSteps)
	}

	answer.Links = filterAllowed(answer.Links, allowedLinks, maxLinks)
	answer.Media.Images = filterAllowed(answer.Media.Images, allowedMedia, maxMedia)

	return nil
}

// filterAllowed keeps references that appear in the allowed set,
// deduplicated in first-appearance order, up to limit entries.
func filterAllowed(refs, allowed []string, limit int) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}

	kept := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := set[ref]; !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		kept = append(kept, ref)
		if len(kept) == limit {
			break
		}
	}

	return kept
}
