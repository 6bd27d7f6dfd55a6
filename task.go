package docex

import (
	"sync"
	"time"
)

// TaskStatus is the lifecycle of an extraction task and of each field within
// it: pending → processing → completed | failed.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FieldState is the progress record of one field within a task.
type FieldState struct {
	Name   string     `json:"name"`
	Status TaskStatus `json:"status"`
	Value  any        `json:"value,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// TaskSnapshot is an immutable view of a task, safe to hand to callers and
// to persist. Result holds only completed field values, restricted to the
// requested schema names; partial success is kept even when the task failed.
type TaskSnapshot struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Status     TaskStatus     `json:"status"`
	Fields     []FieldState   `json:"fields"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// task is the live, mutable record the orchestrator's workers share. Field
// workers touch only their own field entry; every read or write happens
// under mu so the completion check sees a consistent snapshot.
type task struct {
	mu         sync.Mutex
	id         string
	documentID string
	schema     Schema
	status     TaskStatus
	fields     map[string]*FieldState
	order      []string
	err        string
	createdAt  time.Time
	updatedAt  time.Time
}

func newTask(id, documentID string, schema Schema, now time.Time) *task {
	t := &task{
		id:         id,
		documentID: documentID,
		schema:     schema,
		status:     StatusPending,
		fields:     make(map[string]*FieldState, len(schema)),
		order:      schema.Names(),
		createdAt:  now,
		updatedAt:  now,
	}
	for _, f := range schema {
		t.fields[f.Name] = &FieldState{Name: f.Name, Status: StatusPending}
	}
	return t
}

// setStatus moves the task-level status. Terminal tasks are frozen.
func (t *task) setStatus(s TaskStatus, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return false
	}
	t.status = s
	t.updatedAt = now
	return true
}

// setFieldProcessing marks a field as picked up by a worker.
func (t *task) setFieldProcessing(name string, now time.Time) bool {
	return t.writeField(name, now, func(f *FieldState) {
		f.Status = StatusProcessing
	})
}

// completeField records a field's extracted value. Late results arriving
// after the field was timed out (or the task frozen) are discarded.
func (t *task) completeField(name string, value any, now time.Time) bool {
	return t.writeField(name, now, func(f *FieldState) {
		f.Status = StatusCompleted
		f.Value = value
		f.Error = ""
	})
}

// failField records a field failure with a human-readable message.
func (t *task) failField(name, msg string, now time.Time) bool {
	return t.writeField(name, now, func(f *FieldState) {
		f.Status = StatusFailed
		f.Error = msg
	})
}

func (t *task) writeField(name string, now time.Time, mutate func(*FieldState)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return false
	}
	f, ok := t.fields[name]
	if !ok || f.Status.Terminal() {
		return false
	}
	mutate(f)
	t.updatedAt = now
	return true
}

// finishIfDone computes the task's terminal status under one consistent
// snapshot: all fields terminal → completed, or failed when any field
// failed. Completed field values survive into Result either way. Returns
// false while any field is still in flight.
func (t *task) finishIfDone(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return true
	}
	failures := 0
	for _, f := range t.fields {
		if !f.Status.Terminal() {
			return false
		}
		if f.Status == StatusFailed {
			failures++
		}
	}
	if failures > 0 {
		t.status = StatusFailed
		t.err = failureSummary(failures, len(t.fields))
	} else {
		t.status = StatusCompleted
	}
	t.updatedAt = now
	return true
}

func failureSummary(failed, total int) string {
	if failed == total {
		return "all fields failed"
	}
	return "some fields failed"
}

// snapshot copies the task state into an immutable TaskSnapshot.
func (t *task) snapshot() *TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := &TaskSnapshot{
		ID:         t.id,
		DocumentID: t.documentID,
		Status:     t.status,
		Fields:     make([]FieldState, 0, len(t.order)),
		Error:      t.err,
		CreatedAt:  t.createdAt,
		UpdatedAt:  t.updatedAt,
	}
	result := make(map[string]any)
	for _, name := range t.order {
		f := t.fields[name]
		snap.Fields = append(snap.Fields, *f)
		if f.Status == StatusCompleted {
			result[name] = f.Value
		}
	}
	if len(result) > 0 {
		snap.Result = result
	}
	return snap
}
