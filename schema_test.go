package docex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	assert.ErrorIs(t, Schema{}.Validate(), ErrMissingSchema)
	assert.ErrorIs(t, Schema{{Name: ""}}.Validate(), ErrBlankFieldName)
	assert.ErrorContains(t, Schema{{Name: "a"}, {Name: "a"}}.Validate(), "duplicate")
	assert.NoError(t, Schema{{Name: "a"}, {Name: "b"}}.Validate())
}

func TestSchemaAccessors(t *testing.T) {
	s := Schema{
		{Name: "company_name", Description: "legal name"},
		{Name: "total_revenue"},
	}
	assert.Equal(t, []string{"company_name", "total_revenue"}, s.Names())
	assert.True(t, s.Contains("total_revenue"))
	assert.False(t, s.Contains("ghost"))

	f, ok := s.Field("company_name")
	require.True(t, ok)
	assert.Equal(t, "legal name", f.Description)

	_, ok = s.Field("ghost")
	assert.False(t, ok)
}

func TestSchemaJSONSchema(t *testing.T) {
	s := Schema{{Name: "company_name", Description: "legal name"}}
	js := s.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, false, js["additionalProperties"])
	props := js["properties"].(map[string]any)
	require.Contains(t, props, "company_name")
}

func TestSchemaValidateResult(t *testing.T) {
	s := Schema{{Name: "company_name"}, {Name: "total_revenue"}}

	assert.NoError(t, s.ValidateResult([]byte(`{"company_name": "Acme", "total_revenue": null}`)))
	assert.NoError(t, s.ValidateResult([]byte(`{}`)))

	err := s.ValidateResult([]byte(`{"unexpected": 1}`))
	assert.ErrorContains(t, err, "does not match schema")

	err = s.ValidateResult([]byte(`not json`))
	assert.ErrorContains(t, err, "unmarshal")
}
