// Package chunker turns extracted page content into retrieval chunks:
// table chunks straight from the page's tables, text chunks from fixed
// character windows with overlap.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"firerag/internal/domain"
	"firerag/internal/port"
)

// boundaries, in preference order, where a window may end.
var boundaries = []string{"\n\n", "\n", ". ", " "}

// TextChunker cuts page text into windows of at most chunkSize
// characters with overlap characters shared between neighbours,
// preferring paragraph, line and sentence boundaries over hard cuts.
type TextChunker struct {
	chunkSize int
	overlap   int
	tokenizer port.Tokenizer
}

func NewTextChunker(chunkSize, overlap int, tokenizer port.Tokenizer) *TextChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &TextChunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		tokenizer: tokenizer,
	}
}

// ChunkPage builds the chunks for one parsed page: one chunk per
// extracted table, then windowed chunks over the body text. Every
// chunk carries the page's media list.
func (c *TextChunker) ChunkPage(page *ParsedPage, media []string) []domain.Chunk {
	var chunks []domain.Chunk

	for _, table := range page.Tables {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		chunks = append(chunks, c.newChunk(page.Number, table, media, true))
	}

	for _, window := range c.split(page.Text) {
		chunks = append(chunks, c.newChunk(page.Number, window, media, false))
	}

	return chunks
}

func (c *TextChunker) newChunk(pageNum int, text string, media []string, isTable bool) domain.Chunk {
	return domain.Chunk{
		ID:         uuid.NewString(),
		Page:       pageNum,
		Text:       text,
		Tokens:     c.tokenizer.Tokenize(text),
		TokenCount: c.tokenizer.CountTokens(text),
		DiagramIDs: FindDiagramIDs(text),
		Media:      media,
		IsTable:    isTable,
	}
}

func (c *TextChunker) split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	var parts []string
	start := 0

	for start < len(text) {
		if len(text)-start <= c.chunkSize {
			if last := strings.TrimSpace(text[start:]); last != "" {
				parts = append(parts, last)
			}
			break
		}

		cut := c.findCut(text, start)
		if part := strings.TrimSpace(text[start:cut]); part != "" {
			parts = append(parts, part)
		}

		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return parts
}

// findCut returns the end of the window starting at start. A boundary
// in the second half of the window wins over a hard cut; a hard cut
// never lands inside a multi-byte rune.
func (c *TextChunker) findCut(text string, start int) int {
	end := start + c.chunkSize
	half := start + c.chunkSize/2

	for _, sep := range boundaries {
		if idx := strings.LastIndex(text[half:end], sep); idx >= 0 {
			return half + idx + len(sep)
		}
	}

	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
