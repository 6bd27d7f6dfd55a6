package docex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// SanitizeJSONResponse removes garbage characters often produced by LLMs:
// surrounding whitespace and markdown code fences.
func SanitizeJSONResponse(b []byte) []byte {
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}

// ParseExtractionResponse decodes raw model output into a field map. HTML
// error pages and non-JSON payloads are permanent failures: retrying the
// same malformed response gains nothing. Keys outside the schema are
// dropped, absent keys are left absent (the merger treats them as null).
func ParseExtractionResponse(raw []byte, schema Schema) (map[string]any, error) {
	cleaned := SanitizeJSONResponse(raw)
	if len(cleaned) == 0 {
		return nil, Permanent(fmt.Errorf("empty extractor response"))
	}
	if cleaned[0] == '<' {
		return nil, Permanent(fmt.Errorf("received HTML error page instead of JSON response"))
	}
	var m map[string]any
	if err := json.Unmarshal(cleaned, &m); err != nil {
		preview := string(cleaned)
		if len(preview) > 50 {
			preview = preview[:50] + "..."
		}
		return nil, Permanent(fmt.Errorf("parse extractor response (begins with %q): %w", preview, err))
	}
	if len(schema) > 0 {
		for k := range m {
			if !schema.Contains(k) {
				delete(m, k)
			}
		}
	}
	return m, nil
}

// retryable executes call with capped exponential backoff. Permanent errors
// and context cancellation stop the loop immediately.
func retryable(ctx context.Context, call func() error, max int, backoff time.Duration, log *slog.Logger) error {
	if max <= 0 {
		return call()
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	delay := backoff
	var err error
	for attempt := 0; attempt <= max; attempt++ {
		err = call()
		if err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil || attempt == max {
			return err
		}
		log.Debug("attempt failed, retrying", "attempt", attempt+1, "error", err, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

// GenaiExtractor implements Extractor on the Google GenAI API. Calls are
// rate limited, retried with exponential backoff on transient failures, and
// the JSON output is sanitized and optionally validated against the field
// schema before being returned.
type GenaiExtractor struct {
	client   *genai.Client
	model    string
	prompts  PromptProvider
	limiter  *rate.Limiter
	retries  int
	backoff  time.Duration
	validate bool
	log      *slog.Logger
}

// ExtractorOption configures a GenaiExtractor.
type ExtractorOption func(*GenaiExtractor)

// WithExtractorModel overrides the default model name.
func WithExtractorModel(name string) ExtractorOption {
	return func(g *GenaiExtractor) { g.model = name }
}

// WithExtractorRetry caps retries and sets the initial backoff.
func WithExtractorRetry(max int, backoff time.Duration) ExtractorOption {
	return func(g *GenaiExtractor) {
		g.retries = max
		g.backoff = backoff
	}
}

// WithRateLimit throttles extractor calls to perSecond requests.
func WithRateLimit(perSecond float64) ExtractorOption {
	return func(g *GenaiExtractor) {
		if perSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithSchemaValidation validates every response against the field schema's
// generated JSON-Schema document before accepting it.
func WithSchemaValidation() ExtractorOption {
	return func(g *GenaiExtractor) { g.validate = true }
}

// WithExtractorLogger lets the caller supply their own logger.
func WithExtractorLogger(log *slog.Logger) ExtractorOption {
	return func(g *GenaiExtractor) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGenaiExtractor builds an extractor over an initialized genai client.
func NewGenaiExtractor(client *genai.Client, prompts PromptProvider, opts ...ExtractorOption) (*GenaiExtractor, error) {
	if client == nil {
		return nil, fmt.Errorf("genai extractor: client not initialized")
	}
	if prompts == nil {
		var err error
		prompts, err = NewStickPromptProvider()
		if err != nil {
			return nil, err
		}
	}
	g := &GenaiExtractor{
		client:  client,
		model:   "gemini-1.5-pro",
		prompts: prompts,
		retries: 2,
		backoff: time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Extract prompts the model with one chunk of text and the field schema and
// returns the decoded field map.
func (g *GenaiExtractor) Extract(ctx context.Context, text string, schema Schema) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	prompt, err := g.prompts.ExtractionPrompt(schema, text)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = retryable(ctx, func() error {
		if g.limiter != nil {
			if waitErr := g.limiter.Wait(ctx); waitErr != nil {
				return waitErr
			}
		}
		b, genErr := g.generate(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		raw = b
		return nil
	}, g.retries, g.backoff, g.log)
	if err != nil {
		return nil, err
	}

	if g.validate {
		if err := schema.ValidateResult(SanitizeJSONResponse(raw)); err != nil {
			return nil, Permanent(err)
		}
	}
	return ParseExtractionResponse(raw, schema)
}

func (g *GenaiExtractor) generate(ctx context.Context, prompt string) ([]byte, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in candidate content")
	}
	part := candidate.Content.Parts[0]
	if part.Text == "" {
		return nil, fmt.Errorf("no text in first part of response")
	}
	g.log.Debug("generated content", "model", g.model, "response_length", len(part.Text))
	return []byte(part.Text), nil
}
