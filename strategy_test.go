package docex

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectStrategy_MergesChunksInIndexOrder(t *testing.T) {
	// Chunk 0 knows the name, a later chunk knows the revenue.
	ext := &StaticExtractor{Outputs: []map[string]any{
		{"company_name": "Acme Corp", "total_revenue": nil},
		{"company_name": nil, "total_revenue": "$5M"},
	}}
	s := &directStrategy{
		extractor: ext,
		split:     SplitOptions{TargetSize: 50, Overlap: 5, MaxChunks: 10},
		log:       slog.Default(),
	}
	doc := NewDocument("", strings.Repeat("Acme Corp earns money. ", 10))

	results, err := s.extract(context.Background(), doc, FieldSpec{Name: "company_name"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Greater(t, results[1].Index, results[0].Index)
}

func TestDirectStrategy_AllChunksFailing(t *testing.T) {
	ext := &StaticExtractor{Errs: []error{errors.New("malformed output")}}
	s := &directStrategy{
		extractor: ext,
		split:     SplitOptions{TargetSize: 50, Overlap: 5, MaxChunks: 10},
		log:       slog.Default(),
	}
	doc := NewDocument("", strings.Repeat("text. ", 50))

	_, err := s.extract(context.Background(), doc, FieldSpec{Name: "f"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all")
	assert.Contains(t, err.Error(), "malformed output")
}

func TestRetrievalStrategy_PairsHitsWithChunkIndices(t *testing.T) {
	ext := ExtractorFunc(func(ctx context.Context, text string, schema Schema) (map[string]any, error) {
		return map[string]any{"f": text}, nil
	})
	searcher := &StaticSearcher{Hits: []SearchResult{
		{Text: "late chunk", Metadata: map[string]any{"chunk_index": 7}},
		{Text: "early chunk", Metadata: map[string]any{"chunk_index": float64(1)}},
		{Text: "no metadata"},
	}}
	s := &retrievalStrategy{searcher: searcher, extractor: ext, topK: 3, log: slog.Default()}

	results, err := s.extract(context.Background(), NewDocument("", "doc"), FieldSpec{Name: "f"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 7, results[0].Index)
	assert.Equal(t, 1, results[1].Index)
	assert.Equal(t, 2, results[2].Index) // position fallback
}

func TestRetrievalStrategy_EmptyIndexFails(t *testing.T) {
	s := &retrievalStrategy{
		searcher:  &StaticSearcher{},
		extractor: &StaticExtractor{},
		topK:      4,
		log:       slog.Default(),
	}
	_, err := s.extract(context.Background(), NewDocument("", "doc"), FieldSpec{Name: "f"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestFallbackStrategy_PrimaryWins(t *testing.T) {
	primary := &stubStrategy{results: []ChunkResult{{Index: 0, Fields: map[string]any{"f": "primary"}}}}
	secondary := &stubStrategy{results: []ChunkResult{{Index: 0, Fields: map[string]any{"f": "secondary"}}}}
	fb := &fallbackStrategy{primary: primary, secondary: secondary, log: slog.Default()}

	results, err := fb.extract(context.Background(), NewDocument("", "doc"), FieldSpec{Name: "f"})
	require.NoError(t, err)
	assert.Equal(t, "primary", results[0].Fields["f"])
	assert.Equal(t, 0, secondary.calls)
}

func TestFallbackStrategy_FallsThroughOnError(t *testing.T) {
	primary := &stubStrategy{err: errors.New("index not ready")}
	secondary := &stubStrategy{results: []ChunkResult{{Index: 0, Fields: map[string]any{"f": "secondary"}}}}
	fb := &fallbackStrategy{primary: primary, secondary: secondary, log: slog.Default()}

	results, err := fb.extract(context.Background(), NewDocument("", "doc"), FieldSpec{Name: "f"})
	require.NoError(t, err)
	assert.Equal(t, "secondary", results[0].Fields["f"])
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackStrategy_NoFallbackOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &stubStrategy{err: ctx.Err()}
	secondary := &stubStrategy{}
	fb := &fallbackStrategy{primary: primary, secondary: secondary, log: slog.Default()}

	_, err := fb.extract(ctx, NewDocument("", "doc"), FieldSpec{Name: "f"})
	require.Error(t, err)
	assert.Equal(t, 0, secondary.calls)
}

type stubStrategy struct {
	results []ChunkResult
	err     error
	calls   int
}

func (s *stubStrategy) name() string { return "stub" }

func (s *stubStrategy) extract(ctx context.Context, doc *Document, field FieldSpec) ([]ChunkResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}
