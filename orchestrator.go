package docex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Orchestrator drives per-document, per-field asynchronous extraction. Each
// field of a task is one isolated unit of work: field A failing, timing out,
// or crawling never affects field B's status or value. Task snapshots are
// persisted to the injected TaskStore at every transition, so callers poll
// status and collect whatever partial result exists.
type Orchestrator struct {
	extractor Extractor
	searcher  Searcher // optional; enables the retrieval-first path
	store     TaskStore
	cfg       Config
	log       *slog.Logger
	newRunner func(ctx context.Context) Runner

	mu   sync.Mutex
	live map[string]*liveTask
}

type liveTask struct {
	task *task
	done chan struct{}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithStore injects the task store. Defaults to an in-memory store.
func WithStore(s TaskStore) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.store = s
		}
	}
}

// WithSearcher enables the vector-retrieval extraction path. When the
// searcher fails or is not ready for a document, the orchestrator falls back
// to direct extraction over the full chunked text.
func WithSearcher(s Searcher) OrchestratorOption {
	return func(o *Orchestrator) { o.searcher = s }
}

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) OrchestratorOption {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger lets the caller supply their own logger.
func WithLogger(log *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithRunnerFactory replaces the errgroup-backed worker scheduling, e.g. to
// plug extraction into an external workflow engine.
func WithRunnerFactory(f func(ctx context.Context) Runner) OrchestratorOption {
	return func(o *Orchestrator) {
		if f != nil {
			o.newRunner = f
		}
	}
}

// NewOrchestrator builds an orchestrator around the extraction collaborator.
func NewOrchestrator(extractor Extractor, opts ...OrchestratorOption) (*Orchestrator, error) {
	if extractor == nil {
		return nil, fmt.Errorf("orchestrator: extractor is required")
	}
	o := &Orchestrator{
		extractor: extractor,
		store:     NewMemoryStore(),
		cfg:       DefaultConfig(),
		log:       slog.Default(),
		live:      make(map[string]*liveTask),
	}
	o.newRunner = func(ctx context.Context) Runner {
		return NewLimitedRunner(ctx, o.cfg.Extraction.MaxConcurrency)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start validates the request, registers a pending task, and kicks off
// background extraction of every schema field. It returns the task id
// immediately; progress is observed through Status and Result.
func (o *Orchestrator) Start(ctx context.Context, doc *Document, schema Schema) (string, error) {
	if doc == nil || doc.Text == "" {
		return "", fmt.Errorf("start extraction: %w", ErrEmptyDocument)
	}
	if err := schema.Validate(); err != nil {
		return "", fmt.Errorf("start extraction: %w", err)
	}

	now := time.Now()
	t := newTask(uuid.NewString(), doc.ID, schema, now)
	lt := &liveTask{task: t, done: make(chan struct{})}

	o.mu.Lock()
	o.live[t.id] = lt
	o.mu.Unlock()

	o.persist(ctx, t)
	o.log.Info("extraction started", "task", t.id, "document", doc.ID, "fields", len(schema))

	// The task outlives the caller's request context.
	go o.run(context.WithoutCancel(ctx), lt, doc, schema)
	return t.id, nil
}

// Extract is the synchronous convenience wrapper: Start then Wait.
func (o *Orchestrator) Extract(ctx context.Context, doc *Document, schema Schema) (*TaskSnapshot, error) {
	id, err := o.Start(ctx, doc, schema)
	if err != nil {
		return nil, err
	}
	return o.Wait(ctx, id)
}

// Status returns the current snapshot of a task, live or persisted.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	o.mu.Lock()
	lt, ok := o.live[taskID]
	o.mu.Unlock()
	if ok {
		return lt.task.snapshot(), nil
	}
	return o.store.GetTask(ctx, taskID)
}

// Result returns the merged field map of a terminal task. Failed tasks still
// surface whatever fields completed.
func (o *Orchestrator) Result(ctx context.Context, taskID string) (map[string]any, error) {
	snap, err := o.Status(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !snap.Status.Terminal() {
		return nil, fmt.Errorf("task %s is still %s", taskID, snap.Status)
	}
	if snap.Result == nil {
		return map[string]any{}, nil
	}
	return snap.Result, nil
}

// Wait blocks until the task reaches a terminal status or ctx expires.
func (o *Orchestrator) Wait(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	o.mu.Lock()
	lt, ok := o.live[taskID]
	o.mu.Unlock()
	if !ok {
		return o.store.GetTask(ctx, taskID)
	}
	select {
	case <-lt.done:
		return lt.task.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run executes every field worker and settles the task.
func (o *Orchestrator) run(ctx context.Context, lt *liveTask, doc *Document, schema Schema) {
	t := lt.task
	t.setStatus(StatusProcessing, time.Now())
	o.persist(ctx, t)

	strategy := o.strategyFor()
	r := o.newRunner(ctx)
	for _, field := range schema {
		field := field
		r.Go(func() error {
			o.runField(ctx, t, strategy, doc, field)
			return nil // failures live on the task, not the runner
		})
	}
	if err := r.Wait(); err != nil {
		o.log.Error("field workers aborted", "task", t.id, "error", err)
	}

	t.finishIfDone(time.Now())
	o.persist(ctx, t)

	snap := t.snapshot()
	o.log.Info("extraction finished", "task", t.id, "status", snap.Status, "fields_completed", len(snap.Result))

	o.mu.Lock()
	delete(o.live, t.id)
	o.mu.Unlock()
	close(lt.done)
}

// runField drives one field through its lifecycle, bounded by the per-field
// timeout. A worker that overruns the deadline is abandoned: the field is
// failed with a timeout error and any late result is discarded by the
// task's terminal-state write guard.
func (o *Orchestrator) runField(ctx context.Context, t *task, strategy fieldStrategy, doc *Document, field FieldSpec) {
	t.setFieldProcessing(field.Name, time.Now())
	o.persist(ctx, t)

	timeout := o.cfg.Extraction.FieldTimeout.Std()
	if timeout <= 0 {
		timeout = DefaultConfig().Extraction.FieldTimeout.Std()
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := o.extractField(fctx, strategy, doc, field)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		switch {
		case out.err == nil:
			t.completeField(field.Name, out.value, time.Now())
		case errors.Is(out.err, context.DeadlineExceeded):
			o.failFieldTimeout(t, field)
		default:
			o.log.Warn("field extraction failed", "task", t.id, "field", field.Name, "error", out.err)
			t.failField(field.Name, out.err.Error(), time.Now())
		}
	case <-fctx.Done():
		o.failFieldTimeout(t, field)
	}
	o.persist(ctx, t)
}

func (o *Orchestrator) failFieldTimeout(t *task, field FieldSpec) {
	timeout := o.cfg.Extraction.FieldTimeout.Std()
	if timeout <= 0 {
		timeout = DefaultConfig().Extraction.FieldTimeout.Std()
	}
	o.log.Warn("field extraction timed out", "task", t.id, "field", field.Name, "timeout", timeout)
	t.failField(field.Name, fmt.Sprintf("timeout: field %q exceeded %s", field.Name, timeout), time.Now())
}

// extractField runs the configured strategy for one field and merges the
// per-chunk results into a single value.
func (o *Orchestrator) extractField(ctx context.Context, strategy fieldStrategy, doc *Document, field FieldSpec) (any, error) {
	results, err := strategy.extract(ctx, doc, field)
	if err != nil {
		return nil, err
	}
	fieldSchema := Schema{field}
	merged := MergeResults(results, fieldSchema, o.cfg.Confidence)
	return merged[field.Name], nil
}

func (o *Orchestrator) strategyFor() fieldStrategy {
	direct := &directStrategy{
		extractor: o.extractor,
		split:     o.cfg.Chunking.SplitOptions(),
		log:       o.log,
	}
	if o.searcher == nil {
		return direct
	}
	return &fallbackStrategy{
		primary: &retrievalStrategy{
			searcher:  o.searcher,
			extractor: o.extractor,
			topK:      o.cfg.Extraction.TopK,
			log:       o.log,
		},
		secondary: direct,
		log:       o.log,
	}
}

func (o *Orchestrator) persist(ctx context.Context, t *task) {
	if err := o.store.PutTask(ctx, t.snapshot()); err != nil {
		o.log.Error("persist task snapshot", "task", t.id, "error", err)
	}
}
