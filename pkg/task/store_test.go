package task

import (
	"context"
	"database/sql"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/config"
)

func newStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLStore(db, "sqlite3")
	require.NoError(t, err)
	return s
}

func TestSQLStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, a2a.ErrTaskNotFound)

	task := &a2a.Task{
		ID:        "task-1",
		ContextID: "ctx-1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		History:   []*a2a.Message{a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "find shoes"})},
	}
	require.NoError(t, s.Save(ctx, task))

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskID("task-1"), got.ID)
	assert.Equal(t, "ctx-1", got.ContextID)
	assert.Equal(t, a2a.TaskStateWorking, got.Status.State)
	require.Len(t, got.History, 1)
	assert.Empty(t, got.Artifacts)

	task.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted}
	task.Artifacts = []*a2a.Artifact{{ID: "a1", Name: "cart", Parts: a2a.ContentParts{a2a.DataPart{Data: map[string]any{"items": []any{}}}}}}
	task.Metadata = map[string]any{"user_id": "u1"}
	require.NoError(t, s.Save(ctx, task))

	got, err = s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "cart", got.Artifacts[0].Name)
	assert.Equal(t, "u1", got.Metadata["user_id"])
}

func TestSQLStore_ListByContext(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, tk := range []*a2a.Task{
		{ID: "t1", ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}},
		{ID: "t2", ContextID: "c2", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}},
		{ID: "t3", ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateFailed}},
	} {
		require.NoError(t, s.Save(ctx, tk))
	}

	tasks, err := s.ListByContext(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.ElementsMatch(t, []a2a.TaskID{"t1", "t3"}, []a2a.TaskID{tasks[0].ID, tasks[1].ID})
}

func TestNewSQLStore_Errors(t *testing.T) {
	_, err := NewSQLStore(nil, "sqlite")
	assert.Error(t, err)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSQLStore(db, "oracle")
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.SetDefaults()
	store, err := NewStore(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.Server.Tasks.Backend = config.BackendSQL
	_, err = NewStore(ctx, cfg, nil)
	assert.Error(t, err)

	cfg.Server.Tasks.Backend = "redis"
	_, err = NewStore(ctx, cfg, config.NewDBPool())
	assert.Error(t, err)
}
