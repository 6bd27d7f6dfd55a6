package docex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Document is an opaque text blob with an identifier. Immutable once chunked.
type Document struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Length returns the document length in runes.
func (d *Document) Length() int { return len([]rune(d.Text)) }

// TaskStore persists extraction task snapshots by id.
type TaskStore interface {
	PutTask(ctx context.Context, snap *TaskSnapshot) error
	GetTask(ctx context.Context, id string) (*TaskSnapshot, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]*TaskSnapshot, error)
}

// DocumentStore persists documents by id.
type DocumentStore interface {
	PutDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context) ([]*Document, error)
}

// Store combines task and document persistence.
type Store interface {
	TaskStore
	DocumentStore
}

// MemoryStore is a process-local Store backed by mutex-guarded maps.
// Suitable for tests and single-instance deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*TaskSnapshot
	docs  map[string]*Document
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*TaskSnapshot),
		docs:  make(map[string]*Document),
	}
}

func (s *MemoryStore) PutTask(_ context.Context, snap *TaskSnapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("put task: blank id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[snap.ID] = snap
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*TaskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return snap, nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) ListTasks(_ context.Context) ([]*TaskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TaskSnapshot, 0, len(s.tasks))
	for _, snap := range s.tasks {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PutDocument(_ context.Context, doc *Document) error {
	if doc.ID == "" {
		return fmt.Errorf("put document: blank id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
