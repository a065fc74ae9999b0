package ingest

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the target number of tokens per chunk.
	DefaultChunkSize = 256
	// DefaultOverlap is the number of overlapping tokens between chunks.
	DefaultOverlap = 25
)

// splitSentences splits text into sentences using punctuation and newlines.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			// Check it's end-of-sentence (next char is space/end or newline).
			if r == '\n' || i == len(text)-1 || (i+1 < len(text) && unicode.IsSpace(rune(text[i+1]))) {
				s := strings.TrimSpace(current.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// chunkSentences groups sentences into pieces of ~chunkSize tokens with
// overlap. Token count is approximated as word count.
func chunkSentences(sentences []string, chunkSize, overlap int) []string {
	if len(sentences) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var pieces []string
	start := 0

	for start < len(sentences) {
		var buf strings.Builder
		tokens := 0
		end := start

		for end < len(sentences) {
			words := wordCount(sentences[end])
			if tokens+words > chunkSize && tokens > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteRune(' ')
			}
			buf.WriteString(sentences[end])
			tokens += words
			end++
		}

		pieces = append(pieces, buf.String())

		// Move start back by overlap amount, keeping forward progress.
		overlapTokens := 0
		newStart := end
		for newStart > start && overlapTokens < overlap {
			newStart--
			overlapTokens += wordCount(sentences[newStart])
		}
		if newStart == start {
			start = end
		} else {
			start = newStart
		}
	}
	return pieces
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
