// Package chunker splits normalized documents into overlapping,
// bounded-length text chunks for embedding.
package chunker

import (
	"strings"

	"kbgate/internal/document"
)

// Defaults match the character budgets the answering pipeline was tuned for.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunker splits text on a character budget with overlap between
// consecutive chunks. Boundaries are adjusted to the nearest paragraph,
// sentence or word break within a small window so chunks avoid mid-word
// splits while preserving most of the requested overlap.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Non-positive size or overlap fall back to
// defaults; overlap is clamped below size.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks a single document. Every chunk inherits the document's
// metadata unchanged and len(chunk.Content) <= size.
func (c *Chunker) Split(doc document.Document) []document.Chunk {
	pieces := c.splitText(doc.Content)
	chunks := make([]document.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, document.Chunk{
			Content: p,
			Index:   i,
			Meta:    doc.Meta,
		})
	}
	return chunks
}

// SplitAll chunks a batch of documents in order.
func (c *Chunker) SplitAll(docs []document.Document) []document.Chunk {
	var chunks []document.Chunk
	for _, doc := range docs {
		chunks = append(chunks, c.Split(doc)...)
	}
	return chunks
}

func (c *Chunker) splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}

	// Boundary adjustment is capped so consecutive chunks still share at
	// least overlap/2 characters after both ends move.
	adjust := c.overlap / 4
	if adjust == 0 {
		adjust = 1
	}

	var pieces []string
	start := 0
	for {
		if len(text)-start <= c.size {
			pieces = append(pieces, strings.TrimSpace(text[start:]))
			break
		}

		end := breakPoint(text, start+c.size, adjust)
		pieces = append(pieces, strings.TrimSpace(text[start:end]))

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		// Avoid starting a chunk mid-word.
		next = wordStart(text, next, adjust)
		start = next
	}

	out := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// breakPoint moves the cut at most `window` characters backwards to land
// on a paragraph break, sentence end or whitespace, in that order.
func breakPoint(text string, end, window int) int {
	lo := end - window
	if lo < 0 {
		lo = 0
	}
	region := text[lo:end]

	if i := strings.LastIndex(region, "\n\n"); i >= 0 {
		return lo + i
	}
	for i := len(region) - 2; i >= 0; i-- {
		ch := region[i]
		if (ch == '.' || ch == '!' || ch == '?') && isSpace(region[i+1]) {
			return lo + i + 1
		}
	}
	if i := strings.LastIndexFunc(region, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }); i >= 0 {
		return lo + i
	}
	return end
}

// wordStart moves a chunk start forward past a partial word, at most
// `window` characters.
func wordStart(text string, start, window int) int {
	if start <= 0 || start >= len(text) {
		return start
	}
	if isSpace(text[start-1]) || isSpace(text[start]) {
		return start
	}
	hi := start + window
	if hi > len(text) {
		hi = len(text)
	}
	for i := start; i < hi; i++ {
		if isSpace(text[i]) {
			return i + 1
		}
	}
	return start
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
