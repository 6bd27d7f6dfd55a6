package docex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planOrchestrator(t *testing.T, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Chunking = ChunkingConfig{TargetSize: 200, Overlap: 20, MaxChunks: 10}
	orc, err := NewOrchestrator(&StaticExtractor{}, append([]OrchestratorOption{WithConfig(cfg)}, opts...)...)
	require.NoError(t, err)
	return orc
}

func TestPlan_DirectStrategy(t *testing.T) {
	orc := planOrchestrator(t)
	doc := NewDocument("doc-1", strings.Repeat("filing data. ", 100))
	schema := Schema{{Name: "company_name"}, {Name: "total_revenue"}}

	plan, err := orc.Plan(doc, schema)
	require.NoError(t, err)

	assert.Equal(t, "direct", plan.Strategy)
	assert.Greater(t, plan.Chunks, 1)
	require.Len(t, plan.Fields, 2)
	for _, f := range plan.Fields {
		assert.Equal(t, plan.Chunks, f.Calls)
		assert.Greater(t, f.EstInputTokens, 0)
		assert.Greater(t, f.EstOutputTokens, 0)
	}
	assert.Equal(t, 2*plan.Chunks, plan.TotalCalls)
}

func TestPlan_RetrievalStrategyCostsTopK(t *testing.T) {
	orc := planOrchestrator(t, WithSearcher(&StaticSearcher{}))
	doc := NewDocument("doc-1", strings.Repeat("filing data. ", 500))

	plan, err := orc.Plan(doc, Schema{{Name: "total_revenue"}})
	require.NoError(t, err)

	assert.Equal(t, "retrieval+direct", plan.Strategy)
	require.Len(t, plan.Fields, 1)
	assert.Equal(t, 4, plan.Fields[0].Calls) // default top-k
	assert.Less(t, plan.TotalCalls, plan.Chunks)
}

func TestPlan_ReportsChunkCap(t *testing.T) {
	orc := planOrchestrator(t)
	doc := NewDocument("doc-1", strings.Repeat("x", 10000))

	plan, err := orc.Plan(doc, Schema{{Name: "f"}})
	require.NoError(t, err)
	assert.Equal(t, 10, plan.CappedAt)
	assert.LessOrEqual(t, plan.Chunks, 10)
}

func TestPlan_RejectsBadInput(t *testing.T) {
	orc := planOrchestrator(t)
	_, err := orc.Plan(NewDocument("", ""), Schema{{Name: "f"}})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = orc.Plan(NewDocument("", "text"), nil)
	assert.ErrorIs(t, err, ErrMissingSchema)
}

func TestExplain_FormatsPlan(t *testing.T) {
	orc := planOrchestrator(t)
	doc := NewDocument("doc-1", strings.Repeat("filing data. ", 100))

	out, err := orc.Explain(doc, Schema{{Name: "company_name"}, {Name: "items"}})
	require.NoError(t, err)

	assert.Contains(t, out, "Extraction plan (direct)")
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "company_name")
	assert.Contains(t, out, "items")
	assert.Contains(t, out, "Total:")
}

func TestEstimateTokensFromText(t *testing.T) {
	assert.Equal(t, 0, EstimateTokensFromText(""))
	assert.Equal(t, 1, EstimateTokensFromText("ab"))
	assert.Equal(t, 25, EstimateTokensFromText(strings.Repeat("x", 100)))
}
