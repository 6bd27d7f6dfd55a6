package docex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(id string, created time.Time) *TaskSnapshot {
	return &TaskSnapshot{
		ID:         id,
		DocumentID: "doc-" + id,
		Status:     StatusCompleted,
		Fields: []FieldState{
			{Name: "company_name", Status: StatusCompleted, Value: "Acme Corp"},
		},
		Result:    map[string]any{"company_name": "Acme Corp"},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func runStoreSuite(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Truncate(time.Second).UTC()

	// Tasks
	_, err := s.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutTask(ctx, testSnapshot("t1", base)))
	require.NoError(t, s.PutTask(ctx, testSnapshot("t2", base.Add(time.Second))))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "doc-t1", got.DocumentID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "Acme Corp", got.Result["company_name"])

	// Overwrite keeps the same id.
	updated := testSnapshot("t1", base)
	updated.Status = StatusFailed
	require.NoError(t, s.PutTask(ctx, updated))
	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, "t2", tasks[1].ID)

	require.NoError(t, s.DeleteTask(ctx, "t2"))
	assert.ErrorIs(t, s.DeleteTask(ctx, "t2"), ErrNotFound)

	// Documents
	_, err = s.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	doc := &Document{ID: "d1", Text: "filing text", CreatedAt: base}
	require.NoError(t, s.PutDocument(ctx, doc))
	gotDoc, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "filing text", gotDoc.Text)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, s.DeleteDocument(ctx, "d1"))
	assert.ErrorIs(t, s.DeleteDocument(ctx, "d1"), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docex.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	assert.Equal(t, path, s.Path())
	runStoreSuite(t, s)
}

func TestSQLiteStore_BlankPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}

func TestMemoryStore_BlankIDs(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.PutTask(context.Background(), &TaskSnapshot{}))
	assert.Error(t, s.PutDocument(context.Background(), &Document{}))
}
