package session

import (
	"context"
	"database/sql"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/agent"
)

func newSQLiteService(t *testing.T) *SQLService {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	svc, err := NewSQLService(db, "sqlite3")
	require.NoError(t, err)
	return svc
}

func services(t *testing.T) map[string]Service {
	return map[string]Service{
		"memory": InMemoryService(),
		"sql":    newSQLiteService(t),
	}
}

func TestService_CreateGet(t *testing.T) {
	for name, svc := range services(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := svc.Get(ctx, &GetRequest{AppName: "shop", UserID: "u", SessionID: "s1"})
			assert.ErrorIs(t, err, ErrSessionNotFound)

			created, err := svc.Create(ctx, &CreateRequest{
				AppName: "shop", UserID: "u", SessionID: "s1",
				State: map[string]any{"cart": []any{}},
			})
			require.NoError(t, err)
			assert.Equal(t, "s1", created.Session.ID())

			got, err := svc.Get(ctx, &GetRequest{AppName: "shop", UserID: "u", SessionID: "s1"})
			require.NoError(t, err)
			v, err := got.Session.State().Get("cart")
			require.NoError(t, err)
			assert.Empty(t, v)
		})
	}
}

func TestService_AppendEventIsVisibleToGet(t *testing.T) {
	for name, svc := range services(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := svc.Create(ctx, &CreateRequest{
				AppName: "shop", UserID: "u", SessionID: "s1",
				State: map[string]any{"pending_order_summary": map[string]any{"item_count": 1}},
			})
			require.NoError(t, err)

			ev := agent.NewEvent("inv-1")
			ev.Author = "shopping_assistant"
			ev.Message = a2a.NewMessage(a2a.MessageRoleUser, a2a.DataPart{Data: map[string]any{
				"type": "tool_result", "tool_call_id": "c1", "content": "ok",
			}})
			ev.ToolResults = []agent.ToolResultState{{ToolCallID: "c1", ToolName: "add_to_cart", Content: "ok"}}
			ev.Actions.StateDelta["cart"] = []any{map[string]any{"cart_item_id": "c1", "subtotal": 49.0}}
			ev.Actions.StateDelta["pending_order_summary"] = nil
			require.NoError(t, svc.AppendEvent(ctx, created.Session, ev))

			got, err := svc.Get(ctx, &GetRequest{AppName: "shop", UserID: "u", SessionID: "s1"})
			require.NoError(t, err)

			cart, err := got.Session.State().Get("cart")
			require.NoError(t, err)
			items, ok := cart.([]any)
			require.True(t, ok)
			assert.Len(t, items, 1)

			_, err = got.Session.State().Get("pending_order_summary")
			assert.ErrorIs(t, err, ErrStateKeyNotExist)

			require.Equal(t, 1, got.Session.Events().Len())
			stored := got.Session.Events().At(0)
			assert.Equal(t, ev.ID, stored.ID)
			assert.True(t, stored.HasToolResults())
			assert.Equal(t, "add_to_cart", stored.ToolResults[0].ToolName)
		})
	}
}

func TestService_PartialEventsAreNotStored(t *testing.T) {
	for name, svc := range services(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := svc.Create(ctx, &CreateRequest{AppName: "shop", UserID: "u", SessionID: "s1"})
			require.NoError(t, err)

			ev := agent.NewEvent("inv-1")
			ev.Partial = true
			ev.Actions.StateDelta["x"] = 1
			require.NoError(t, svc.AppendEvent(ctx, created.Session, ev))

			got, err := svc.Get(ctx, &GetRequest{AppName: "shop", UserID: "u", SessionID: "s1"})
			require.NoError(t, err)
			assert.Equal(t, 0, got.Session.Events().Len())
			_, err = got.Session.State().Get("x")
			assert.ErrorIs(t, err, ErrStateKeyNotExist)
		})
	}
}

func TestService_ListAndDelete(t *testing.T) {
	for name, svc := range services(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"a", "b"} {
				_, err := svc.Create(ctx, &CreateRequest{AppName: "shop", UserID: "u", SessionID: id})
				require.NoError(t, err)
			}
			_, err := svc.Create(ctx, &CreateRequest{AppName: "shop", UserID: "other", SessionID: "c"})
			require.NoError(t, err)

			list, err := svc.List(ctx, &ListRequest{AppName: "shop", UserID: "u"})
			require.NoError(t, err)
			assert.Len(t, list.Sessions, 2)

			require.NoError(t, svc.Delete(ctx, &DeleteRequest{AppName: "shop", UserID: "u", SessionID: "a"}))
			_, err = svc.Get(ctx, &GetRequest{AppName: "shop", UserID: "u", SessionID: "a"})
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestSQLService_NumRecentEvents(t *testing.T) {
	svc := newSQLiteService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, &CreateRequest{AppName: "shop", UserID: "u", SessionID: "s"})
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		ev := agent.NewEvent("inv")
		ev.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "hi"})
		require.NoError(t, svc.AppendEvent(ctx, created.Session, ev))
		ids = append(ids, ev.ID)
	}

	got, err := svc.Get(ctx, &GetRequest{AppName: "shop", UserID: "u", SessionID: "s", NumRecentEvents: 2})
	require.NoError(t, err)
	require.Equal(t, 2, got.Session.Events().Len())
	assert.Equal(t, ids[1], got.Session.Events().At(0).ID)
	assert.Equal(t, ids[2], got.Session.Events().At(1).ID)
	assert.Equal(t, "hi", got.Session.Events().At(1).TextContent())
}
