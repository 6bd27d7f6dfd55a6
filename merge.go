package docex

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Bookkeeping keys that leak into chunk results from transport envelopes and
// must never reach the merged output.
var bookkeepingKeys = map[string]struct{}{
	"success": {},
	"error":   {},
}

// ChunkResult pairs one chunk's extraction output with the index of the
// chunk it came from. Workers may finish out of order; the index, not the
// slice position, drives the confidence heuristic.
type ChunkResult struct {
	Index  int
	Fields map[string]any
}

// ConfidenceWeights tune the position-decay confidence heuristic. The decay
// curve is deliberately a parameter, not a contract: documents front-load
// authoritative summary data, so earlier chunks score higher, but the exact
// coefficients are tuning knobs.
type ConfidenceWeights struct {
	Base         float64 `toml:"base"`          // confidence of any non-empty value before position adjustment
	PositionSpan float64 `toml:"position_span"` // how much position can add on top of Base
	NullScore    float64 `toml:"null_score"`    // fixed confidence of a null value
	EmptyScore   float64 `toml:"empty_score"`   // fixed confidence of an empty string/list
	Floor        float64 `toml:"floor"`         // lower clamp
	Ceiling      float64 `toml:"ceiling"`       // upper clamp
}

// DefaultConfidenceWeights returns the tuning observed to work well on
// financial and legal documents.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Base:         0.7,
		PositionSpan: 0.3,
		NullScore:    0.1,
		EmptyScore:   0.2,
		Floor:        0.1,
		Ceiling:      0.99,
	}
}

// Confidence scores one field occurrence. Null values pin to NullScore and
// empty strings/lists to EmptyScore regardless of position; everything else
// decays monotonically with chunk index, clamped to [Floor, Ceiling].
func (w ConfidenceWeights) Confidence(value any, chunkIndex, totalChunks int) float64 {
	if value == nil {
		return w.NullScore
	}
	if isEmptyValue(value) {
		return w.EmptyScore
	}
	if totalChunks < 1 {
		totalChunks = 1
	}
	position := 1.0 - float64(chunkIndex)/float64(totalChunks*2)
	c := w.Base + position*w.PositionSpan
	if c < w.Floor {
		c = w.Floor
	}
	if c > w.Ceiling {
		c = w.Ceiling
	}
	return c
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

// MergeResults combines per-chunk extraction results into one value per
// field. For each field the highest-confidence occurrence wins, with ties
// broken in favour of the earlier chunk. A concrete value always displaces a
// null or empty incumbent, whatever the respective confidences. List-valued
// occurrences are concatenated and, when the elements are records, deduped
// by an identifying key taken from the first element.
//
// The output contains exactly the fields that appeared in at least one chunk
// result, restricted to schema names when a schema is supplied.
func MergeResults(results []ChunkResult, schema Schema, w ConfidenceWeights) map[string]any {
	merged := make(map[string]any)
	if len(results) == 0 {
		return merged
	}

	if len(results) == 1 {
		for field, value := range results[0].Fields {
			if skipField(field, schema) {
				continue
			}
			merged[field] = value
		}
		return merged
	}

	total := 0
	for _, r := range results {
		if r.Index+1 > total {
			total = r.Index + 1
		}
	}

	ordered := make([]ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	confidences := make(map[string]float64)
	for _, r := range ordered {
		if r.Fields == nil {
			continue
		}
		for field, value := range r.Fields {
			if skipField(field, schema) {
				continue
			}
			c := w.Confidence(value, r.Index, total)
			prev, seen := confidences[field]

			switch {
			case !seen:
				merged[field] = value
				confidences[field] = c
			case bothLists(merged[field], value):
				merged[field] = mergeLists(merged[field].([]any), value.([]any))
				if c > prev {
					confidences[field] = c
				}
			case c > prev, emptyBeatenByConcrete(merged[field], value):
				merged[field] = value
				confidences[field] = c
			}
		}
	}
	slog.Debug("merged extraction results", "chunks", len(results), "fields", len(merged))
	return merged
}

func skipField(field string, schema Schema) bool {
	if _, book := bookkeepingKeys[field]; book {
		return true
	}
	return len(schema) > 0 && !schema.Contains(field)
}

// emptyBeatenByConcrete reports whether a null/empty incumbent should yield
// to a concrete newcomer. Never let a null outrank a real value just because
// it appeared earlier in the document.
func emptyBeatenByConcrete(incumbent, newcomer any) bool {
	if newcomer == nil || isEmptyValue(newcomer) {
		return false
	}
	return incumbent == nil || isEmptyValue(incumbent)
}

func bothLists(a, b any) bool {
	_, aok := a.([]any)
	_, bok := b.([]any)
	return aok && bok
}

// mergeLists concatenates two list values. When the elements are records, the
// concatenation is deduped by an identifying key picked from the first
// element; scalar lists are concatenated as-is.
func mergeLists(existing, incoming []any) []any {
	combined := make([]any, 0, len(existing)+len(incoming))
	combined = append(combined, existing...)
	combined = append(combined, incoming...)
	if len(combined) == 0 {
		return combined
	}

	first, ok := combined[0].(map[string]any)
	if !ok || len(first) == 0 {
		return combined
	}
	idKey := identifyingKey(first)

	seen := make(map[string]struct{})
	unique := make([]any, 0, len(combined))
	for _, item := range combined {
		rec, ok := item.(map[string]any)
		if !ok {
			unique = append(unique, item)
			continue
		}
		id, _ := rec[idKey].(string)
		if id == "" {
			id = fmt.Sprint(rec[idKey])
		}
		if id == "" || id == "<nil>" {
			unique = append(unique, item)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

// identifyingKey picks the key used to dedupe record elements. JSON member
// order does not survive unmarshalling into a map, so "the first field"
// is approximated: common identifier names first, then the lexicographically
// smallest key for determinism.
func identifyingKey(rec map[string]any) string {
	for _, k := range []string{"id", "name", "description", "title"} {
		if _, ok := rec[k]; ok {
			return k
		}
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
