package domain

import "fmt"

// Chunk is the unit of retrieval: a bounded window of regulation text
// extracted from one source page during ingestion. Chunks are written
// once by the ingest job and read-only afterwards.
type Chunk struct {
	ID         string   `json:"id"`
	Page       int      `json:"page"`
	Text       string   `json:"text"`
	Tokens     []string `json:"tokens,omitempty"`
	TokenCount int      `json:"token_count"`
	DiagramIDs []string `json:"diagram_ids,omitempty"`
	Media      []string `json:"media,omitempty"`
	IsTable    bool     `json:"is_table,omitempty"`
}

// Hit is a raw candidate-selection result: a chunk reference and its
// similarity score on the selecting index's own scale. Hits are resolved
// to full chunks by the retrieval orchestrator.
type Hit struct {
	ChunkID string
	Score   float64
}

const (
	// RelevanceUnscored marks a candidate the scorer has not seen yet.
	RelevanceUnscored = -1.0
	// RelevanceMin is the degraded score assigned when scoring one
	// candidate fails.
	RelevanceMin = 0.0
	// RelevanceMax is the upper bound of the scorer's scale.
	RelevanceMax = 10.0
)

// Candidate is a chunk proposed by candidate selection, carrying its
// similarity score and, after reranking, its relevance score. Rank is
// the position in the original similarity ordering and breaks relevance
// ties deterministically.
type Candidate struct {
	Chunk      Chunk
	Similarity float64
	Relevance  float64
	Rank       int
}

// RetrievalResult is the orchestrator's output for a query that cleared
// the relevance gate. A nil *RetrievalResult with a nil error means "no
// sufficiently relevant content found" and is a designed outcome, not a
// failure.
type RetrievalResult struct {
	Context  string   `json:"context"`
	Pages    []int    `json:"pages"`
	Media    []string `json:"media"`
	Diagrams []string `json:"diagrams,omitempty"`
}

// Page groups the chunk IDs and media files that belong to one source
// page. Stored by ingestion, used for diagram enrichment.
type Page struct {
	Number   int      `json:"number"`
	ChunkIDs []string `json:"chunk_ids"`
	Media    []string `json:"media,omitempty"`
}

// Posting is one term occurrence record in the keyword index.
type Posting struct {
	ChunkID string
	TF      int
}

// Stats summarizes the indexed corpus.
type Stats struct {
	TotalPages  int
	TotalChunks int
	TotalTables int
	AvgChunkLen float64
}

// Answer is the structured response produced by the generation stage.
type Answer struct {
	Mode  string      `json:"mode"`
	Body  AnswerBody  `json:"answer"`
	Links []string    `json:"links"`
	Media AnswerMedia `json:"media"`
}

// AnswerBody holds the generated answer fields the guardrails validate.
type AnswerBody struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Steps        []string `json:"steps"`
	Verification []string `json:"verification"`
}

// AnswerMedia lists media references the answer may cite.
type AnswerMedia struct {
	Images []string `json:"images"`
}

const (
	// AnswerModeAnswer marks a grounded answer built from retrieved context.
	AnswerModeAnswer = "answer"
	// AnswerModeNoInformation marks the declined-to-answer response.
	AnswerModeNoInformation = "no_information"
)

// NoInformationAnswer is returned whenever retrieval declines to answer.
func NoInformationAnswer() Answer {
	return Answer{
		Mode: AnswerModeNoInformation,
		Body: AnswerBody{
			Title:        "No Information Found",
			Summary:      "No relevant information was found in the documentation.",
			Steps:        []string{},
			Verification: []string{},
		},
		Links: []string{},
		Media: AnswerMedia{Images: []string{}},
	}
}

// PageLink returns the media route of a page render. Answer links use
// this form so clients can open the cited page directly.
func PageLink(page int) string {
	return fmt.Sprintf("/media/page_%d.png", page)
}
