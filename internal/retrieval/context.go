package retrieval

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxContextChars is the default grounding context budget.
const DefaultMaxContextChars = 8000

// ContextFormatter assembles the grounding text block handed to the
// generation step. Deterministic and idempotent: the same result list
// always renders to a byte-identical string.
type ContextFormatter struct {
	maxChars int
}

// NewContextFormatter creates a formatter with the given character
// budget.
func NewContextFormatter(maxChars int) *ContextFormatter {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	return &ContextFormatter{maxChars: maxChars}
}

// Format concatenates chunk texts in order, each prefixed with a
// source marker. The last included chunk is truncated if it would
// exceed the budget; subsequent chunks are omitted entirely.
func (f *ContextFormatter) Format(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	remaining := f.maxChars

	for _, r := range results {
		block := f.renderBlock(r)
		if sb.Len() > 0 {
			block = "\n\n" + block
		}

		if len(block) <= remaining {
			sb.WriteString(block)
			remaining -= len(block)
			continue
		}

		// Partial fit: truncate this chunk's text, then stop.
		if remaining > 0 {
			sb.WriteString(truncateToRuneBoundary(block, remaining))
		}
		break
	}

	return sb.String()
}

// truncateToRuneBoundary cuts s to at most n bytes without splitting a
// multibyte rune, backing off to the previous rune boundary.
func truncateToRuneBoundary(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}

// renderBlock formats a single chunk with its source marker.
func (f *ContextFormatter) renderBlock(r Result) string {
	marker := "[source: " + r.ChunkID
	if doc, ok := r.Metadata["sourceDocId"]; ok && doc != "" {
		marker += " | doc: " + doc
	}
	marker += "]\n"
	return marker + r.Text
}
