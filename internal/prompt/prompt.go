// Package prompt holds the model-facing prompt templates. Templates are
// embedded so a deployed binary cannot drift from the prompts it was
// tested with.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"firerag/internal/domain"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

var (
	scoringSystem = mustRead("templates/scoring_system.txt")
	answerSystem  = mustRead("templates/answer_system.txt")
)

func mustRead(name string) string {
	data, err := templateFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return strings.TrimSpace(string(data))
}

// ScoringSystem returns the system prompt for relevance scoring.
func ScoringSystem() string {
	return scoringSystem
}

// ScoringUser renders the per-candidate scoring prompt.
func ScoringUser(query, passage string) (string, error) {
	return render("scoring_user.txt", struct {
		Query   string
		Passage string
	}{query, passage})
}

// AnswerSystem returns the system prompt for structured answer
// generation.
func AnswerSystem() string {
	return answerSystem
}

// AnswerUser renders the answer-generation prompt with the retrieved
// context and its provenance lists.
func AnswerUser(query, context string, pages []int, media []string) (string, error) {
	return render("answer_user.txt", struct {
		Query   string
		Context string
		Pages   string
		Media   string
	}{query, context, formatPages(pages), formatMedia(media)})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "[]"
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = domain.PageLink(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatMedia(media []string) string {
	if len(media) == 0 {
		return "[]"
	}
	return "[" + strings.Join(media, ", ") + "]"
}
