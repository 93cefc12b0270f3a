// Package segment splits raw document text into overlapping chunks for
// embedding. Pure and deterministic: the same input and options always
// produce the same chunk sequence.
package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// Options controls chunk sizing.
type Options struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int
	// Overlap is the number of trailing characters carried into the next
	// chunk for continuity across chunk boundaries.
	Overlap int
}

// DefaultOptions provides sane defaults for embedding-sized chunks.
func DefaultOptions() Options {
	return Options{
		ChunkSize: 1000,
		Overlap:   200,
	}
}

// Chunk is one contiguous slice of the input text. Char offsets are tracked
// cumulatively across the whole input for later citation.
type Chunk struct {
	Content   string
	Index     int
	CharStart int
	CharEnd   int
}

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// Split breaks text into overlapping chunks, preferring paragraph boundaries
// and falling back to sentence boundaries for paragraphs that alone exceed
// the chunk size. Empty or whitespace-only input yields no chunks.
func Split(text string, opts Options) []Chunk {
	if opts.ChunkSize <= 0 {
		opts = DefaultOptions()
	}
	chunkSize := opts.ChunkSize
	overlap := opts.Overlap

	if strings.TrimSpace(text) == "" {
		return nil
	}

	var paragraphs []string
	for _, p := range paragraphSep.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []Chunk
	current := ""
	currentStart := 0
	charPosition := 0

	flush := func() {
		trimmed := strings.TrimSpace(current)
		chunks = append(chunks, Chunk{
			Content:   trimmed,
			Index:     len(chunks),
			CharStart: currentStart,
			CharEnd:   currentStart + runeLen(trimmed),
		})
	}

	for _, paragraph := range paragraphs {
		para := strings.TrimSpace(paragraph)

		switch {
		case runeLen(para) > chunkSize:
			// A single paragraph exceeding the chunk size is split at
			// sentence boundaries with the same flush-and-overlap discipline.
			if strings.TrimSpace(current) != "" {
				flush()
				tail := lastRunes(strings.TrimSpace(current), overlap)
				current = tail + "\n\n"
			}

			for _, sentence := range splitSentences(para) {
				if runeLen(current)+runeLen(sentence) > chunkSize && strings.TrimSpace(current) != "" {
					flush()
					trimmed := strings.TrimSpace(current)
					tail := lastRunes(trimmed, overlap)
					currentStart += runeLen(trimmed) - runeLen(tail)
					current = tail + " "
				}
				current += sentence + " "
			}

		case runeLen(current)+runeLen(para)+2 > chunkSize && strings.TrimSpace(current) != "":
			// Adding this paragraph would exceed the chunk size; flush and
			// seed the next buffer with the overlap tail.
			flush()
			trimmed := strings.TrimSpace(current)
			tail := lastRunes(trimmed, overlap)
			currentStart += runeLen(trimmed) - runeLen(tail)
			current = tail + "\n\n" + para

		default:
			if runeLen(current) > 0 {
				current += "\n\n"
			}
			if runeLen(current) == 0 {
				currentStart = charPosition
			}
			current += para
		}

		charPosition += runeLen(paragraph) + 2
	}

	if strings.TrimSpace(current) != "" {
		flush()
	}

	return chunks
}

// splitSentences splits at a punctuation mark in ".!?" followed by
// whitespace and an uppercase letter. The whitespace at the boundary is
// consumed.
func splitSentences(text string) []string {
	runes := []rune(text)
	var parts []string
	start := 0

	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j > i+1 && j < len(runes) && unicode.IsUpper(runes[j]) {
				parts = append(parts, string(runes[start:i+1]))
				start = j
				i = j
				continue
			}
		}
		i++
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}

	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

// lastRunes returns the trailing n runes of s, clamped to the whole string.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
