package docex

import (
	"fmt"
	"strings"
)

// ExtractionPlan estimates the cost of extracting a schema from a document
// before any collaborator call is made: how many chunks the document splits
// into, how many extractor calls each field needs, and rough token figures.
type ExtractionPlan struct {
	DocumentID      string      `json:"document_id"`
	Chunks          int         `json:"chunks"`
	CappedAt        int         `json:"capped_at,omitempty"` // set when the chunk cap truncated
	Fields          []FieldPlan `json:"fields"`
	TotalCalls      int         `json:"total_calls"`
	EstInputTokens  int         `json:"est_input_tokens"`
	EstOutputTokens int         `json:"est_output_tokens"`
	Strategy        string      `json:"strategy"`
}

// FieldPlan is the per-field share of an extraction plan.
type FieldPlan struct {
	Name            string `json:"name"`
	Calls           int    `json:"calls"`
	EstInputTokens  int    `json:"est_input_tokens"`
	EstOutputTokens int    `json:"est_output_tokens"`
}

// Plan simulates an extraction without calling any collaborator. With a
// searcher configured each field costs top-k calls; otherwise every field
// visits every chunk.
func (o *Orchestrator) Plan(doc *Document, schema Schema) (*ExtractionPlan, error) {
	if doc == nil || doc.Text == "" {
		return nil, fmt.Errorf("plan: %w", ErrEmptyDocument)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	opts := o.cfg.Chunking.SplitOptions().withDefaults()
	chunks := Split(doc.Text, opts)
	strategy := o.strategyFor()

	callsPerField := len(chunks)
	chunkTokens := 0
	for _, c := range chunks {
		chunkTokens += EstimateTokensFromText(c.Text)
	}
	if o.searcher != nil {
		callsPerField = o.cfg.Extraction.TopK
		if callsPerField <= 0 {
			callsPerField = 4
		}
		if callsPerField > len(chunks) {
			callsPerField = len(chunks)
		}
		// Retrieval reads a top-k sample rather than the whole document.
		if len(chunks) > 0 {
			chunkTokens = chunkTokens * callsPerField / len(chunks)
		}
	}

	plan := &ExtractionPlan{
		DocumentID: doc.ID,
		Chunks:     len(chunks),
		Strategy:   strategy.name(),
	}
	if estimateChunkCount(doc, opts) > opts.MaxChunks {
		plan.CappedAt = opts.MaxChunks
	}

	for _, f := range schema {
		fp := FieldPlan{
			Name:            f.Name,
			Calls:           callsPerField,
			EstInputTokens:  chunkTokens + callsPerField*EstimateTokensFromText(FieldQuery(f)),
			EstOutputTokens: callsPerField * estimateFieldOutputTokens(f.Name),
		}
		plan.Fields = append(plan.Fields, fp)
		plan.TotalCalls += fp.Calls
		plan.EstInputTokens += fp.EstInputTokens
		plan.EstOutputTokens += fp.EstOutputTokens
	}
	return plan, nil
}

// Explain renders the plan as human-readable text.
func (o *Orchestrator) Explain(doc *Document, schema Schema) (string, error) {
	plan, err := o.Plan(doc, schema)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Extraction plan (%s)\n", plan.Strategy)
	fmt.Fprintf(&b, "├─ Document: %s (%d chunks", plan.DocumentID, plan.Chunks)
	if plan.CappedAt > 0 {
		fmt.Fprintf(&b, ", capped at %d", plan.CappedAt)
	}
	b.WriteString(")\n")
	for i, f := range plan.Fields {
		branch := "├─"
		if i == len(plan.Fields)-1 {
			branch = "└─"
		}
		fmt.Fprintf(&b, "%s Field %s: %d calls, ~%d in / ~%d out tokens\n",
			branch, f.Name, f.Calls, f.EstInputTokens, f.EstOutputTokens)
	}
	fmt.Fprintf(&b, "Total: %d extractor calls, ~%d input tokens, ~%d output tokens\n",
		plan.TotalCalls, plan.EstInputTokens, plan.EstOutputTokens)
	return b.String(), nil
}

// estimateChunkCount predicts the uncapped chunk count from text length and
// the effective stride.
func estimateChunkCount(doc *Document, opts SplitOptions) int {
	length := doc.Length()
	if length <= opts.TargetSize {
		return 1
	}
	stride := opts.TargetSize - opts.Overlap
	if stride < 1 {
		stride = 1
	}
	return (length + stride - 1) / stride
}

// EstimateTokensFromText provides a rough token estimate from text length,
// assuming ~4 characters per token.
func EstimateTokensFromText(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// estimateFieldOutputTokens guesses the answer size from the field name.
func estimateFieldOutputTokens(field string) int {
	name := strings.ToLower(field)
	switch {
	case strings.Contains(name, "name") || strings.Contains(name, "title"):
		return 15
	case strings.Contains(name, "address") || strings.Contains(name, "description"):
		return 30
	case strings.Contains(name, "email") || strings.Contains(name, "phone") || strings.Contains(name, "url"):
		return 20
	case strings.Contains(name, "amount") || strings.Contains(name, "total") || strings.Contains(name, "count"):
		return 5
	case strings.Contains(name, "date") || strings.Contains(name, "time"):
		return 10
	case strings.Contains(name, "items") || strings.Contains(name, "list"):
		return 60
	default:
		return 20
	}
}
