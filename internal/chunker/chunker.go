// Package chunker splits document text into overlapping passages sized for
// embedding. Splitting is deterministic: the same text and parameters always
// produce the same chunk boundaries, which is what makes re-ingestion
// replace chunks instead of drifting.
package chunker

import (
	"strings"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// Chunker splits text into overlapping chunks, preferring paragraph and
// sentence boundaries and falling back to hard cuts only when no boundary
// exists within the tolerance window.
type Chunker struct {
	targetChars    int
	overlapChars   int
	toleranceChars int
}

// New creates a Chunker. overlapPercent is the share of targetChars carried
// over between consecutive chunks.
func New(targetChars, overlapPercent, toleranceChars int) *Chunker {
	if targetChars <= 0 {
		targetChars = 800
	}
	if overlapPercent < 0 {
		overlapPercent = 0
	}
	if toleranceChars < 0 {
		toleranceChars = 0
	}
	overlap := targetChars * overlapPercent / 100
	if overlap >= targetChars {
		overlap = targetChars - 1
	}
	return &Chunker{
		targetChars:    targetChars,
		overlapChars:   overlap,
		toleranceChars: toleranceChars,
	}
}

// Chunk splits the document text into ordered chunks with 0-based sequence
// indices. Empty or whitespace-only text yields zero chunks, not an error.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []domain.Chunk

	start := 0
	seq := 0
	for start < len(runes) {
		end := c.cutPoint(runes, start)

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, domain.Chunk{
				DocumentID: documentID,
				Seq:        seq,
				Text:       piece,
				CharCount:  len([]rune(piece)),
			})
			seq++
		}

		if end >= len(runes) {
			break
		}

		next := end - c.overlapChars
		if next <= start {
			next = end // guarantee forward progress
		}
		start = next
	}

	return chunks
}

// cutPoint returns the exclusive end index for a chunk starting at start.
// It aims for start+targetChars and snaps to the best boundary inside the
// tolerance window: paragraph breaks win over sentence ends.
func (c *Chunker) cutPoint(runes []rune, start int) int {
	target := start + c.targetChars
	if target >= len(runes) {
		return len(runes)
	}

	lo := target - c.toleranceChars
	if lo <= start {
		lo = start + 1
	}
	hi := target + c.toleranceChars
	if hi > len(runes) {
		hi = len(runes)
	}

	if p := lastBoundary(runes, lo, hi, isParagraphBreak); p > 0 {
		return p
	}
	if p := lastBoundary(runes, lo, hi, isSentenceEnd); p > 0 {
		return p
	}
	return target
}

// lastBoundary scans [lo, hi) backwards and returns the index just past the
// last boundary found, or 0 when there is none.
func lastBoundary(runes []rune, lo, hi int, match func([]rune, int) bool) int {
	for i := hi - 1; i >= lo; i-- {
		if match(runes, i) {
			return i + 1
		}
	}
	return 0
}

// isParagraphBreak reports whether position i ends a paragraph (a newline
// followed by another newline, possibly with spaces between).
func isParagraphBreak(runes []rune, i int) bool {
	if runes[i] != '\n' {
		return false
	}
	for j := i + 1; j < len(runes); j++ {
		switch runes[j] {
		case ' ', '\t', '\r':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return false
}

// isSentenceEnd reports whether position i is sentence-ending punctuation
// followed by whitespace or end of text.
func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+1 >= len(runes) {
		return true
	}
	next := runes[i+1]
	return next == ' ' || next == '\n' || next == '\t' || next == '\r'
}
