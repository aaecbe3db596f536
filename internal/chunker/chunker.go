// Package chunker splits extracted document text into overlapping,
// size-bounded segments. Segments are contiguous rune spans of the
// source text: joining them back together minus the overlap prefixes
// reproduces the input exactly.
package chunker

import (
	"strings"
	"unicode"
)

// Chunker splits text into chunks of at most maxSize runes where each
// chunk after the first begins overlap runes before the previous
// chunk's end. Units are runes throughout the system.
type Chunker struct {
	maxSize int
	overlap int
}

// New returns a chunker. maxSize must exceed overlap; overlap must be
// non-negative. Out-of-range values are clamped rather than rejected
// since configuration is validated at startup.
func New(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize - 1
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Split returns the chunk texts of text in source order. Whitespace-only
// input yields zero chunks. Chunk position is the slice index.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string

	start := 0
	for start < len(runes) {
		limit := start + c.maxSize
		if limit >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end := c.splitPoint(runes, start, limit)
		chunks = append(chunks, string(runes[start:end]))
		start = end - c.overlap
	}

	return chunks
}

// splitPoint picks where the chunk starting at start should end. It
// prefers the last paragraph break within the window, then the last
// sentence end, then the last whitespace run, and hard-cuts at limit
// when the window contains no usable break. The chosen point must leave
// room past the overlap so the next chunk always advances.
func (c *Chunker) splitPoint(runes []rune, start, limit int) int {
	floor := start + c.overlap // next start is end-overlap; end must exceed this

	if p := lastParagraphBreak(runes, floor+1, limit); p > floor {
		return p
	}
	if p := lastSentenceEnd(runes, floor+1, limit); p > floor {
		return p
	}
	if p := lastWhitespace(runes, floor+1, limit); p > floor {
		return p
	}
	return limit
}

// lastParagraphBreak returns the position just after the last blank
// line in runes[lo:hi], or -1.
func lastParagraphBreak(runes []rune, lo, hi int) int {
	for i := hi; i > lo; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	return -1
}

// lastSentenceEnd returns the position just after the last sentence
// terminator followed by whitespace in runes[lo:hi], or -1.
func lastSentenceEnd(runes []rune, lo, hi int) int {
	for i := hi; i > lo; i-- {
		if !unicode.IsSpace(runes[i-1]) {
			continue
		}
		switch runes[i-2] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

// lastWhitespace returns the position just after the last whitespace
// rune in runes[lo:hi], or -1.
func lastWhitespace(runes []rune, lo, hi int) int {
	for i := hi; i > lo; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return -1
}
