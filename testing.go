package docex

import (
	"context"
	"sync"
)

// StaticExtractor is an Extractor for tests: it returns canned field maps in
// sequence, then repeats the last one. A nil entry yields the paired error.
type StaticExtractor struct {
	mu      sync.Mutex
	Outputs []map[string]any
	Errs    []error
	Calls   int
}

func (s *StaticExtractor) Extract(ctx context.Context, text string, schema Schema) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.Calls
	s.Calls++
	if len(s.Errs) > 0 {
		j := i
		if j >= len(s.Errs) {
			j = len(s.Errs) - 1
		}
		if err := s.Errs[j]; err != nil {
			return nil, err
		}
	}
	if len(s.Outputs) == 0 {
		return map[string]any{}, nil
	}
	if i >= len(s.Outputs) {
		i = len(s.Outputs) - 1
	}
	return s.Outputs[i], nil
}

// StaticSearcher is a Searcher for tests returning fixed hits or an error.
type StaticSearcher struct {
	Hits []SearchResult
	Err  error
}

func (s *StaticSearcher) SimilaritySearch(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if k < len(s.Hits) {
		return s.Hits[:k], nil
	}
	return s.Hits, nil
}
