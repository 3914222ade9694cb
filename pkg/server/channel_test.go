package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQueue collects written events. failAfter, when positive, makes
// every write past that count fail. rejectOnce fails the first write it
// matches and is then cleared.
type recordingQueue struct {
	mu         sync.Mutex
	events     []a2a.Event
	failAfter  int
	rejectOnce func(a2a.Event) bool
}

func (q *recordingQueue) Write(_ context.Context, ev a2a.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAfter > 0 && len(q.events) >= q.failAfter {
		return errors.New("queue closed")
	}
	if q.rejectOnce != nil && q.rejectOnce(ev) {
		q.rejectOnce = nil
		return errors.New("queue busy")
	}
	q.events = append(q.events, ev)
	return nil
}

func (q *recordingQueue) statuses() []*a2a.TaskStatusUpdateEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*a2a.TaskStatusUpdateEvent
	for _, ev := range q.events {
		if s, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

func (q *recordingQueue) artifacts() []*a2a.TaskArtifactUpdateEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*a2a.TaskArtifactUpdateEvent
	for _, ev := range q.events {
		if a, ok := ev.(*a2a.TaskArtifactUpdateEvent); ok {
			out = append(out, a)
		}
	}
	return out
}

func statusText(ev *a2a.TaskStatusUpdateEvent) string {
	if ev.Status.Message == nil {
		return ""
	}
	for _, p := range ev.Status.Message.Parts {
		if tp, ok := p.(a2a.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}

func newRequestContext(msg *a2a.Message) *a2asrv.RequestContext {
	return &a2asrv.RequestContext{
		Message:   msg,
		TaskID:    a2a.NewTaskID(),
		ContextID: "ctx-1",
	}
}

func TestTaskChannel_TextArtifactLifecycle(t *testing.T) {
	ctx := context.Background()
	q := &recordingQueue{}
	ch := newTaskChannel(newRequestContext(nil), q, "response")

	require.NoError(t, ch.Enqueue(ctx))
	require.NoError(t, ch.AppendText(ctx, "Hello "))
	require.NoError(t, ch.AppendText(ctx, ""))
	require.NoError(t, ch.AppendText(ctx, "there"))
	require.NoError(t, ch.Complete(ctx))
	require.NoError(t, ch.Complete(ctx))

	statuses := q.statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, a2a.TaskStateSubmitted, statuses[0].Status.State)
	assert.Equal(t, a2a.TaskStateCompleted, statuses[1].Status.State)
	assert.True(t, statuses[1].Final)

	arts := q.artifacts()
	require.Len(t, arts, 3)
	assert.Equal(t, "response", arts[0].Artifact.Name)
	assert.False(t, arts[0].Append)
	assert.Equal(t, arts[0].Artifact.ID, arts[1].Artifact.ID)
	assert.True(t, arts[1].Append)
	assert.Equal(t, arts[0].Artifact.ID, arts[2].Artifact.ID)
	assert.True(t, arts[2].LastChunk)
}

func TestTaskChannel_CompleteWithoutText(t *testing.T) {
	q := &recordingQueue{}
	ch := newTaskChannel(newRequestContext(nil), q, "response")
	require.NoError(t, ch.Complete(context.Background()))
	assert.Empty(t, q.artifacts())
	require.Len(t, q.statuses(), 1)
}

func TestTaskChannel_AddArtifact(t *testing.T) {
	q := &recordingQueue{}
	ch := newTaskChannel(newRequestContext(nil), q, "response")
	part := a2a.DataPart{Data: map[string]any{"type": "cart"}}
	require.NoError(t, ch.AddArtifact(context.Background(), []a2a.Part{part}, "cart"))

	arts := q.artifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "cart", arts[0].Artifact.Name)
	assert.True(t, arts[0].LastChunk)
}

func TestTaskChannel_Fail(t *testing.T) {
	q := &recordingQueue{}
	ch := newTaskChannel(newRequestContext(nil), q, "response")
	require.NoError(t, ch.Fail(context.Background(), errors.New("model unavailable")))

	statuses := q.statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, a2a.TaskStateFailed, statuses[0].Status.State)
	assert.True(t, statuses[0].Final)
	assert.Equal(t, "Error: model unavailable", statusText(statuses[0]))
}

func TestTaskChannel_WriteError(t *testing.T) {
	q := &recordingQueue{failAfter: 1}
	ch := newTaskChannel(newRequestContext(nil), q, "response")
	require.NoError(t, ch.AppendText(context.Background(), "partial"))

	err := ch.Complete(context.Background())
	require.Error(t, err)
	assert.False(t, ch.completed)
}
