package docex

import (
	"context"
	"fmt"
	"log/slog"
)

// fieldStrategy produces per-chunk extraction results for one field. The
// orchestrator merges them; the strategy only decides which text reaches the
// extractor.
type fieldStrategy interface {
	name() string
	extract(ctx context.Context, doc *Document, field FieldSpec) ([]ChunkResult, error)
}

// directStrategy chunks the full document text and extracts the field from
// each chunk sequentially, in index order. A chunk failure is isolated: the
// remaining chunks still run, and the field only fails when every chunk did.
type directStrategy struct {
	extractor Extractor
	split     SplitOptions
	log       *slog.Logger
}

func (s *directStrategy) name() string { return "direct" }

func (s *directStrategy) extract(ctx context.Context, doc *Document, field FieldSpec) ([]ChunkResult, error) {
	chunks := Split(doc.Text, s.split)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	fieldSchema := Schema{field}

	var (
		results []ChunkResult
		lastErr error
	)
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m, err := s.extractor.Extract(ctx, chunk.Text, fieldSchema)
		if err != nil {
			// Keep going: one bad chunk must not sink the field.
			s.log.Debug("chunk extraction failed", "field", field.Name, "chunk", chunk.Index, "error", err)
			lastErr = err
			continue
		}
		results = append(results, ChunkResult{Index: chunk.Index, Fields: m})
	}
	if len(results) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("field %q: all %d chunks failed: %w", field.Name, len(chunks), lastErr)
		}
		return nil, fmt.Errorf("field %q: no chunk produced a result", field.Name)
	}
	return results, nil
}

// retrievalStrategy asks the vector index for the top-k chunks most relevant
// to the field's query and extracts from those. Chunk indices are recovered
// from hit metadata so the merge heuristic still sees document positions.
type retrievalStrategy struct {
	searcher  Searcher
	extractor Extractor
	topK      int
	log       *slog.Logger
}

func (s *retrievalStrategy) name() string { return "retrieval" }

func (s *retrievalStrategy) extract(ctx context.Context, doc *Document, field FieldSpec) ([]ChunkResult, error) {
	k := s.topK
	if k <= 0 {
		k = 4
	}
	query := FieldQuery(field)
	hits, err := s.searcher.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search for %q: %w", field.Name, err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("similarity search for %q: index not ready", field.Name)
	}
	fieldSchema := Schema{field}

	var (
		results []ChunkResult
		lastErr error
	)
	for i, hit := range hits {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m, err := s.extractor.Extract(ctx, hit.Text, fieldSchema)
		if err != nil {
			s.log.Debug("retrieved chunk extraction failed", "field", field.Name, "hit", i, "error", err)
			lastErr = err
			continue
		}
		results = append(results, ChunkResult{Index: hit.ChunkIndex(i), Fields: m})
	}
	if len(results) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("field %q: all %d retrieved chunks failed: %w", field.Name, len(hits), lastErr)
		}
		return nil, fmt.Errorf("field %q: no retrieved chunk produced a result", field.Name)
	}
	return results, nil
}

// fallbackStrategy tries the primary path and, on any failure, runs the
// secondary one. The decision is logged but invisible to the caller: same
// task, same result shape.
type fallbackStrategy struct {
	primary   fieldStrategy
	secondary fieldStrategy
	log       *slog.Logger
}

func (s *fallbackStrategy) name() string {
	return s.primary.name() + "+" + s.secondary.name()
}

func (s *fallbackStrategy) extract(ctx context.Context, doc *Document, field FieldSpec) ([]ChunkResult, error) {
	results, err := s.primary.extract(ctx, doc, field)
	if err == nil {
		return results, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	s.log.Warn("primary extraction path failed, falling back",
		"field", field.Name, "primary", s.primary.name(), "secondary", s.secondary.name(), "error", err)
	return s.secondary.extract(ctx, doc, field)
}
