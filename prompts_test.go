package docex

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStickPromptProvider_DefaultTemplate(t *testing.T) {
	p, err := NewStickPromptProvider()
	require.NoError(t, err)

	schema := Schema{
		{Name: "company_name", Description: "legal name of the filer"},
		{Name: "total_revenue"},
	}
	prompt, err := p.ExtractionPrompt(schema, "Acme Corp reported $5M.")
	require.NoError(t, err)

	assert.Contains(t, prompt, "company_name: legal name of the filer")
	assert.Contains(t, prompt, "total_revenue: information about total_revenue")
	assert.Contains(t, prompt, "Acme Corp reported $5M.")
	assert.Contains(t, prompt, "use null as the value")
}

func TestStickPromptProvider_CustomTemplate(t *testing.T) {
	p, err := NewStickPromptProvider(WithTemplate("Fields: {{ names }}. Doc: {{ document }}"))
	require.NoError(t, err)

	prompt, err := p.ExtractionPrompt(Schema{{Name: "a"}, {Name: "b"}}, "text")
	require.NoError(t, err)
	assert.Equal(t, "Fields: a, b. Doc: text", prompt)
}

func TestStickPromptProvider_EmptyTemplateRejected(t *testing.T) {
	_, err := NewStickPromptProvider(WithTemplate("  "))
	assert.Error(t, err)
}

func TestStickPromptProvider_TemplateFS(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/extract.twig": &fstest.MapFile{
			Data: []byte("EXTRACT {{ names }} FROM {{ document }}"),
		},
	}
	p, err := NewStickPromptProvider(WithTemplateFS(fsys, "prompts"))
	require.NoError(t, err)

	prompt, err := p.ExtractionPrompt(Schema{{Name: "f"}}, "doc body")
	require.NoError(t, err)
	assert.Equal(t, "EXTRACT f FROM doc body", prompt)
}

func TestStickPromptProvider_TemplateFSMissing(t *testing.T) {
	_, err := NewStickPromptProvider(WithTemplateFS(fstest.MapFS{"prompts/.keep": &fstest.MapFile{}}, "prompts"))
	assert.Error(t, err)
}

func TestStickPromptProvider_PromptVar(t *testing.T) {
	p, err := NewStickPromptProvider(
		WithTemplate("{{ tone }}: {{ names }}"),
		WithPromptVar("tone", "strict"),
	)
	require.NoError(t, err)

	prompt, err := p.ExtractionPrompt(Schema{{Name: "x"}}, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "strict:"))
}
