package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/agent/llmagent"
	"github.com/kadirpekel/storefront/pkg/auth"
	"github.com/kadirpekel/storefront/pkg/model/modeltest"
	"github.com/kadirpekel/storefront/pkg/runner"
	"github.com/kadirpekel/storefront/pkg/session"
	"github.com/kadirpekel/storefront/pkg/tool"
	"github.com/kadirpekel/storefront/pkg/tool/functiontool"
)

type queryArgs struct {
	Query string `json:"query" jsonschema:"required"`
}

type noArgs struct{}

func searchTool() tool.Tool {
	return functiontool.Must(
		functiontool.Config{Name: "text_vector_search", Description: "Search products"},
		func(ctx tool.Context, args queryArgs) (map[string]any, error) {
			results := []any{map[string]any{
				"id": "p1", "name": "Running Shoe", "price_usd_units": 50, "picture": "/p1.jpg",
			}}
			if err := ctx.State().Set("current_results", results); err != nil {
				return nil, err
			}
			return map[string]any{"count": 1}, nil
		},
	)
}

func imageTool(seen *[]byte) tool.Tool {
	return functiontool.Must(
		functiontool.Config{Name: "image_vector_search", Description: "Search by image"},
		func(ctx tool.Context, _ noArgs) (map[string]any, error) {
			v, err := ctx.State().Get(StateKeyImageBytes)
			if err != nil {
				return nil, err
			}
			*seen, _ = v.([]byte)
			return map[string]any{"count": 0}, nil
		},
	)
}

func cartTool() tool.Tool {
	return functiontool.Must(
		functiontool.Config{Name: "add_to_cart", Description: "Add to cart"},
		func(ctx tool.Context, _ noArgs) (map[string]any, error) {
			cart := []any{map[string]any{"cart_item_id": "c1", "product_id": "p1", "subtotal": 49.0}}
			if err := ctx.State().Set("cart", cart); err != nil {
				return nil, err
			}
			return map[string]any{"added": true}, nil
		},
	)
}

// orderTool leaves both search results and a placed order behind.
func orderTool() tool.Tool {
	return functiontool.Must(
		functiontool.Config{Name: "create_order", Description: "Place the order"},
		func(ctx tool.Context, _ noArgs) (map[string]any, error) {
			if err := ctx.State().Set("current_results", []any{map[string]any{"id": "p1", "name": "Shoe"}}); err != nil {
				return nil, err
			}
			order := map[string]any{"order_id": "O1", "status": "completed", "total_amount": 49.0}
			if err := ctx.State().Set("current_order", order); err != nil {
				return nil, err
			}
			return order, nil
		},
	)
}

// flakySessions fails selected state reads issued by the executor. Reads
// are numbered from 1 and counted only for NumRecentEvents == 1, which the
// runner never uses.
type flakySessions struct {
	session.Service

	mu    sync.Mutex
	reads int
	fail  map[int]bool
}

func (s *flakySessions) Get(ctx context.Context, req *session.GetRequest) (*session.GetResponse, error) {
	if req.NumRecentEvents == 1 {
		s.mu.Lock()
		s.reads++
		n := s.reads
		s.mu.Unlock()
		if s.fail[n] {
			return nil, errors.New("store hiccup")
		}
	}
	return s.Service.Get(ctx, req)
}

// dataArtifacts returns the names of the named non-text artifacts, in
// publish order.
func dataArtifacts(q *recordingQueue) []string {
	var names []string
	for _, ev := range q.artifacts() {
		if ev.Artifact.Name != "" && ev.Artifact.Name != "response" {
			names = append(names, ev.Artifact.Name)
		}
	}
	return names
}

func artifactData(t *testing.T, q *recordingQueue, name string) map[string]any {
	t.Helper()
	for _, ev := range q.artifacts() {
		if ev.Artifact.Name != name {
			continue
		}
		require.Len(t, ev.Artifact.Parts, 1)
		dp, ok := ev.Artifact.Parts[0].(a2a.DataPart)
		require.True(t, ok)
		return dp.Data
	}
	t.Fatalf("no %s artifact", name)
	return nil
}

func responseText(q *recordingQueue) (text string, closes int) {
	for _, ev := range q.artifacts() {
		if ev.Artifact.Name != "" && ev.Artifact.Name != "response" {
			continue
		}
		for _, p := range ev.Artifact.Parts {
			if tp, ok := p.(a2a.TextPart); ok {
				text += tp.Text
			}
		}
		if ev.LastChunk {
			closes++
		}
	}
	return text, closes
}

func newExecutor(t *testing.T, llm *modeltest.LLM, tools ...tool.Tool) (*Executor, session.Service) {
	t.Helper()
	return newExecutorWithSessions(t, session.InMemoryService(), llm, tools...)
}

func newExecutorWithSessions(t *testing.T, svc session.Service, llm *modeltest.LLM, tools ...tool.Tool) (*Executor, session.Service) {
	t.Helper()
	a, err := llmagent.New(llmagent.Config{Name: "shopping_assistant", Model: llm, Tools: tools, MaxIterations: 4})
	require.NoError(t, err)
	r, err := runner.New(runner.Config{AppName: "shopping_assistant", Agent: a, SessionService: svc})
	require.NoError(t, err)
	return NewExecutor(ExecutorConfig{
		Runner:           r,
		RunConfig:        agent.RunConfig{Streaming: true},
		MaxUploadBytes:   1024,
		AllowedMimeTypes: []string{"image/jpeg", "image/png"},
	}), svc
}

func TestExecutor_SearchTurn(t *testing.T) {
	llm := modeltest.New(
		modeltest.Call("c1", "text_vector_search", map[string]any{"query": "running shoes"}),
		modeltest.Text("Here ", "is one."),
	)
	exec, _ := newExecutor(t, llm, searchTool())

	q := &recordingQueue{}
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "running shoes"}))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	statuses := q.statuses()
	require.GreaterOrEqual(t, len(statuses), 4)
	assert.Equal(t, a2a.TaskStateSubmitted, statuses[0].Status.State)
	assert.Equal(t, DefaultStatusMessage, statusText(statuses[1]))
	assert.Equal(t, "Searching for products...", statusText(statuses[2]))
	last := statuses[len(statuses)-1]
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
	assert.True(t, last.Final)

	var text string
	var products int
	var responseID a2a.ArtifactID
	closed := false
	for _, ev := range q.artifacts() {
		switch {
		case ev.Artifact.Name == "products":
			products++
			require.Len(t, ev.Artifact.Parts, 1)
			dp, ok := ev.Artifact.Parts[0].(a2a.DataPart)
			require.True(t, ok)
			assert.Equal(t, "product_list", dp.Data["type"])
		case ev.Artifact.Name == "response" || ev.Artifact.ID == responseID:
			responseID = ev.Artifact.ID
			for _, p := range ev.Artifact.Parts {
				if tp, ok := p.(a2a.TextPart); ok {
					text += tp.Text
				}
			}
			if ev.LastChunk {
				closed = true
			}
		}
	}
	assert.Equal(t, 1, products)
	assert.Equal(t, "Here is one.", text)
	assert.True(t, closed)
}

func TestExecutor_ModelFailureFailsTask(t *testing.T) {
	llm := modeltest.New(modeltest.Turn{Err: errors.New("quota exceeded")})
	exec, _ := newExecutor(t, llm)

	q := &recordingQueue{}
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	statuses := q.statuses()
	last := statuses[len(statuses)-1]
	assert.Equal(t, a2a.TaskStateFailed, last.Status.State)
	assert.True(t, last.Final)
	assert.Contains(t, statusText(last), "quota exceeded")
}

func TestExecutor_RejectsOversizedImage(t *testing.T) {
	exec, _ := newExecutor(t, modeltest.New())

	q := &recordingQueue{}
	big := make([]byte, 2048)
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, imagePart(big, "image/png")))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	statuses := q.statuses()
	last := statuses[len(statuses)-1]
	assert.Equal(t, a2a.TaskStateFailed, last.Status.State)
	assert.Contains(t, statusText(last), ErrFileTooLarge.Error())
}

func TestExecutor_SeedsUploadedImage(t *testing.T) {
	var seen []byte
	llm := modeltest.New(
		modeltest.Call("c1", "image_vector_search", nil),
		modeltest.Text("Nothing similar."),
	)
	exec, svc := newExecutor(t, llm, imageTool(&seen))

	q := &recordingQueue{}
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "like this"}, imagePart([]byte("jpegdata"), "image/jpeg"))
	msg.Metadata = map[string]any{"user_id": "u-42"}
	require.NoError(t, exec.execute(context.Background(), newRequestContext(msg), q))

	assert.Equal(t, []byte("jpegdata"), seen)

	got, err := svc.Get(context.Background(), &session.GetRequest{AppName: "shopping_assistant", UserID: "u-42", SessionID: "ctx-1"})
	require.NoError(t, err)
	mime, err := got.Session.State().Get(StateKeyImageMimeType)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}

func TestExecutor_UserID(t *testing.T) {
	exec, _ := newExecutor(t, modeltest.New())
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"})

	assert.Equal(t, "a2a_user", exec.userID(context.Background(), msg))

	msg.Metadata = map[string]any{"user_id": "meta-user"}
	assert.Equal(t, "meta-user", exec.userID(context.Background(), msg))

	ctx := auth.ContextWithClaims(context.Background(), &auth.Claims{Subject: "jwt-user"})
	assert.Equal(t, "jwt-user", exec.userID(ctx, msg))
}

func TestExecutor_CancelIsUnsupported(t *testing.T) {
	exec, _ := newExecutor(t, modeltest.New())
	err := exec.Cancel(context.Background(), newRequestContext(nil), nil)
	assert.ErrorIs(t, err, a2a.ErrUnsupportedOperation)
}

func TestExecutor_SearchThenCartAcrossModelCalls(t *testing.T) {
	llm := modeltest.New(
		modeltest.Call("c1", "text_vector_search", map[string]any{"query": "shoes"}),
		modeltest.Call("c2", "add_to_cart", nil),
		modeltest.Text("Added to your cart."),
	)
	exec, _ := newExecutor(t, llm, searchTool(), cartTool())

	q := &recordingQueue{}
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "add shoes"}))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	assert.Equal(t, []string{"products", "cart"}, dataArtifacts(q))
	cart := artifactData(t, q, "cart")
	assert.Equal(t, "cart", cart["type"])
	assert.EqualValues(t, 1, cart["total_items"])
	assert.EqualValues(t, 49.0, cart["subtotal"])

	text, closes := responseText(q)
	assert.Equal(t, "Added to your cart.", text)
	assert.Equal(t, 1, closes)

	statuses := q.statuses()
	assert.Equal(t, a2a.TaskStateCompleted, statuses[len(statuses)-1].Status.State)
}

func TestExecutor_StateReadFailureMidTurnDegrades(t *testing.T) {
	llm := modeltest.New(
		modeltest.Call("c1", "text_vector_search", map[string]any{"query": "shoes"}),
		modeltest.Text("Found one."),
	)
	// Reads 1 and 2 bootstrap the turn, 3 to 5 follow the model call, the
	// tool result and the final answer, 6 is the closing sweep.
	svc := &flakySessions{Service: session.InMemoryService(), fail: map[int]bool{3: true, 4: true, 5: true}}
	exec, _ := newExecutorWithSessions(t, svc, llm, searchTool())

	q := &recordingQueue{}
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "shoes"}))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	statuses := q.statuses()
	last := statuses[len(statuses)-1]
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
	for _, st := range statuses {
		assert.NotEqual(t, a2a.TaskStateFailed, st.Status.State)
	}
	assert.Equal(t, []string{"products"}, dataArtifacts(q))
	text, _ := responseText(q)
	assert.Equal(t, "Found one.", text)
}

func TestExecutor_FinalSweepReadFailureFailsTask(t *testing.T) {
	llm := modeltest.New(modeltest.Text("Hello."))
	// 1 and 2 bootstrap, 3 is the final answer, 4 is the sweep.
	svc := &flakySessions{Service: session.InMemoryService(), fail: map[int]bool{4: true}}
	exec, _ := newExecutorWithSessions(t, svc, llm)

	q := &recordingQueue{}
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	statuses := q.statuses()
	last := statuses[len(statuses)-1]
	assert.Equal(t, a2a.TaskStateFailed, last.Status.State)
	assert.Contains(t, statusText(last), "store hiccup")
}

func TestExecutor_FinalEventOnlyTriesOrderCategories(t *testing.T) {
	llm := modeltest.New(
		modeltest.Call("c1", "create_order", nil),
		modeltest.Text("Order placed."),
	)
	// Skip the checks after the model call and the tool result so the
	// final answer is the first event to see the new state.
	svc := &flakySessions{Service: session.InMemoryService(), fail: map[int]bool{3: true, 4: true}}
	exec, _ := newExecutorWithSessions(t, svc, llm, orderTool())

	q := &recordingQueue{}
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "buy"}))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	// The order goes out on the final event; products wait for the sweep.
	assert.Equal(t, []string{"order", "products"}, dataArtifacts(q))
	order := artifactData(t, q, "order")
	assert.Equal(t, "O1", order["order_id"])

	statuses := q.statuses()
	assert.Equal(t, a2a.TaskStateCompleted, statuses[len(statuses)-1].Status.State)
}

func TestExecutor_CompletionIsRetriedOnce(t *testing.T) {
	llm := modeltest.New(modeltest.Text("Hi there."))
	exec, _ := newExecutor(t, llm)

	q := &recordingQueue{rejectOnce: func(ev a2a.Event) bool {
		st, ok := ev.(*a2a.TaskStatusUpdateEvent)
		return ok && st.Status.State == a2a.TaskStateCompleted
	}}
	reqCtx := newRequestContext(a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.NoError(t, exec.execute(context.Background(), reqCtx, q))

	var completed int
	for _, st := range q.statuses() {
		assert.NotEqual(t, a2a.TaskStateFailed, st.Status.State)
		if st.Status.State == a2a.TaskStateCompleted {
			completed++
			assert.True(t, st.Final)
		}
	}
	assert.Equal(t, 1, completed)

	text, closes := responseText(q)
	assert.Equal(t, "Hi there.", text)
	assert.Equal(t, 1, closes)
}
