package docex

import (
	"log/slog"
	"strings"
)

// Chunking defaults, tunable through Config.
const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 500
	DefaultMaxChunks    = 20
)

// Chunk is a contiguous slice of a document's text. Index reflects document
// position and feeds the merge confidence heuristic; Start is the rune
// offset of the chunk within the decoded text.
type Chunk struct {
	Index int
	Start int
	Text  string
}

// Size returns the chunk length in runes.
func (c Chunk) Size() int { return len([]rune(c.Text)) }

// SplitOptions control how Split carves a document.
type SplitOptions struct {
	TargetSize int // target chunk size in runes
	Overlap    int // runes shared with the previous chunk
	MaxChunks  int // hard cap on emitted chunks, 0 → DefaultMaxChunks
}

// DefaultSplitOptions returns the tuning used when callers pass the zero
// value.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{
		TargetSize: DefaultChunkSize,
		Overlap:    DefaultChunkOverlap,
		MaxChunks:  DefaultMaxChunks,
	}
}

func (o SplitOptions) withDefaults() SplitOptions {
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.TargetSize {
		o.Overlap = o.TargetSize / 2
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	return o
}

// Split carves text into overlapping, size-bounded chunks. Short inputs come
// back as a single chunk; empty input yields nil. Chunk ends snap backward to
// a nearby paragraph break (or, failing that, a sentence break) when one
// falls in the back half of the window, so tables and sentences are not cut
// mid-way when a natural boundary is close.
//
// When the document would produce more than MaxChunks chunks, both the head
// and the tail are kept: leading pages carry summaries and headline numbers
// while trailing pages often hold the financial tables, so truncating only
// the tail loses high-value fields. Original chunk indices are preserved
// across the cut.
func Split(text string, opts SplitOptions) []Chunk {
	if text == "" {
		return nil
	}
	opts = opts.withDefaults()

	runes := []rune(text)
	if len(runes) <= opts.TargetSize {
		return []Chunk{{Index: 0, Start: 0, Text: text}}
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := min(start+opts.TargetSize, len(runes))

		if end < len(runes) {
			end = snapToBoundary(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			Text:  string(runes[start:end]),
		})

		if end >= len(runes) {
			break
		}
		// Overlap with the previous chunk, never regressing past the
		// previous start so the loop always terminates.
		next := end - opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	if len(chunks) > opts.MaxChunks {
		chunks = capChunks(chunks, opts.MaxChunks)
	}
	slog.Debug("split document", "chunks", len(chunks), "runes", len(runes))
	return chunks
}

// snapToBoundary pulls end back to just after a paragraph break, or failing
// that a sentence break, when one is found in the back half of the current
// window.
func snapToBoundary(runes []rune, start, end int) int {
	window := string(runes[start:end])
	mid := (end - start) / 2

	if p := strings.LastIndex(window, "\n\n"); p >= 0 {
		if off := runeLen(window[:p]); off > mid {
			return start + off + 2
		}
	}
	if p := strings.LastIndex(window, ". "); p >= 0 {
		if off := runeLen(window[:p]); off > mid {
			return start + off + 2
		}
	}
	return end
}

// capChunks enforces the hard chunk cap, biasing toward the document's head
// while keeping a share of the tail.
func capChunks(chunks []Chunk, max int) []Chunk {
	tail := max / 3
	head := max - tail
	kept := make([]Chunk, 0, max)
	kept = append(kept, chunks[:head]...)
	if tail > 0 {
		kept = append(kept, chunks[len(chunks)-tail:]...)
	}
	slog.Warn("document exceeds chunk cap", "chunks", len(chunks), "kept", len(kept))
	return kept
}

func runeLen(s string) int { return len([]rune(s)) }
