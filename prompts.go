package docex

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"
)

// PromptProvider renders the extraction prompt for a field schema and a
// chunk of document text.
type PromptProvider interface {
	ExtractionPrompt(schema Schema, document string) (string, error)
}

// defaultPromptTemplate instructs the model to emit strict JSON keyed by the
// requested field names, with null for anything it cannot find.
const defaultPromptTemplate = `You are a document data extraction assistant that extracts structured information from text.
Extract the following fields as a valid JSON object. If a field cannot be found in the text, use null as the value. Do not make up information.

Fields:
{% for field in fields %}- {{ field.name }}: {{ field.description }}
{% endfor %}
Return only the JSON object.

<<DOC>>
{{ document }}
<<END>>`

// StickPromptProvider renders prompts from Twig templates via stick.
type StickPromptProvider struct {
	env      *stick.Env
	template string
	vars     map[string]stick.Value
}

// PromptOption configures a StickPromptProvider.
type PromptOption func(*StickPromptProvider) error

// WithTemplate replaces the built-in extraction template.
func WithTemplate(tpl string) PromptOption {
	return func(p *StickPromptProvider) error {
		if strings.TrimSpace(tpl) == "" {
			return fmt.Errorf("prompt template is empty")
		}
		p.template = tpl
		return nil
	}
}

// WithTemplateFS loads the extraction template from the first *.twig file
// found under dir in the supplied FS.
func WithTemplateFS(fsys fs.FS, dir string) PromptOption {
	return func(p *StickPromptProvider) error {
		found := false
		err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if found || d.IsDir() || filepath.Ext(path) != ".twig" {
				return nil
			}
			content, readErr := fs.ReadFile(fsys, path)
			if readErr != nil {
				return fmt.Errorf("read %s: %w", path, readErr)
			}
			p.template = string(content)
			found = true
			return nil
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no *.twig template under %s", dir)
		}
		return nil
	}
}

// WithPromptVar adds a variable available in the template.
func WithPromptVar(key string, value any) PromptOption {
	return func(p *StickPromptProvider) error {
		p.vars[key] = value
		return nil
	}
}

// NewStickPromptProvider builds a provider from any combination of options.
func NewStickPromptProvider(opts ...PromptOption) (*StickPromptProvider, error) {
	p := &StickPromptProvider{
		env:      stick.New(nil),
		template: defaultPromptTemplate,
		vars:     make(map[string]stick.Value),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ExtractionPrompt renders the template with the schema's fields and the
// document text in scope.
func (p *StickPromptProvider) ExtractionPrompt(schema Schema, document string) (string, error) {
	fields := make([]map[string]stick.Value, 0, len(schema))
	names := make([]string, 0, len(schema))
	for _, f := range schema {
		desc := f.Description
		if desc == "" {
			desc = "information about " + f.Name
		}
		fields = append(fields, map[string]stick.Value{
			"name":        f.Name,
			"description": desc,
		})
		names = append(names, f.Name)
	}

	templateCtx := map[string]stick.Value{
		"fields":   fields,
		"names":    strings.Join(names, ", "),
		"document": document,
	}
	for k, v := range p.vars {
		templateCtx[k] = v
	}

	var out strings.Builder
	if err := p.env.Execute(p.template, &out, templateCtx); err != nil {
		return "", fmt.Errorf("execute prompt template: %w", err)
	}
	return out.String(), nil
}
