package docex

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when the source document has no text.
var ErrEmptyDocument = errors.New("document text is empty")
var ErrMissingSchema = errors.New("schema is required")
var ErrBlankFieldName = errors.New("field name is blank")
var ErrNotFound = errors.New("not found")
var ErrUnsupportedType = errors.New("unsupported document type")
var ErrTaskTerminal = errors.New("task is terminal")

// Extractor is the external field-extraction collaborator: given a chunk of
// text and a field schema it returns a best-effort value per field. It may
// omit fields it cannot find, may fail for a chunk entirely, and is not
// deterministic across retries.
type Extractor interface {
	Extract(ctx context.Context, text string, schema Schema) (map[string]any, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, text string, schema Schema) (map[string]any, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string, schema Schema) (map[string]any, error) {
	return f(ctx, text, schema)
}

// SearchResult is one hit from a vector similarity lookup. Metadata carries
// at least the originating chunk index under "chunk_index" so results can be
// re-paired with document position for the merge heuristic.
type SearchResult struct {
	Text     string
	Metadata map[string]any
}

// ChunkIndex reads the originating chunk index from the hit's metadata,
// falling back to the given default when absent or malformed.
func (r SearchResult) ChunkIndex(fallback int) int {
	switch v := r.Metadata["chunk_index"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// Searcher is the vector similarity search collaborator. Implementations
// wrap whatever index is in use; the orchestrator only needs top-k lookup.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// PermanentError marks a collaborator failure that retrying cannot fix:
// malformed JSON, auth failures, HTML error pages. Retry loops stop
// immediately on these.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that retryable gives up on it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// FieldQuery builds the retrieval query for one field.
func FieldQuery(f FieldSpec) string {
	desc := f.Description
	if desc == "" {
		desc = "information about " + f.Name
	}
	return fmt.Sprintf("Extract information about %s: %s", f.Name, desc)
}
