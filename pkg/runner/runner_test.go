// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runner

import (
	"context"
	"iter"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/session"
)

// scriptedAgent emits a partial chunk, a state-changing event and a final
// answer.
func scriptedAgent(t *testing.T) agent.Agent {
	a, err := agent.New(agent.Config{
		Name: "shopping_assistant",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				chunk := agent.NewEvent(ctx.InvocationID())
				chunk.Partial = true
				chunk.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "Added"})
				if !yield(chunk, nil) {
					return
				}

				update := agent.NewEvent(ctx.InvocationID())
				update.ToolResults = []agent.ToolResultState{{ToolCallID: "c1", ToolName: "add_to_cart"}}
				update.Actions.StateDelta["cart"] = []any{map[string]any{"product_id": "p1"}}
				if !yield(update, nil) {
					return
				}

				final := agent.NewEvent(ctx.InvocationID())
				final.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "Added"})
				yield(final, nil)
			}
		},
	})
	require.NoError(t, err)
	return a
}

func TestRunner_PersistsBeforeYield(t *testing.T) {
	svc := session.InMemoryService()
	r, err := New(Config{AppName: "shop", Agent: scriptedAgent(t), SessionService: svc})
	require.NoError(t, err)

	ctx := context.Background()
	get := func() session.Session {
		resp, err := svc.Get(ctx, &session.GetRequest{AppName: "shop", UserID: "u", SessionID: "s"})
		require.NoError(t, err)
		return resp.Session
	}

	var seen int
	for ev, err := range r.Run(ctx, "u", "s", agent.NewTextContent("add it", a2a.MessageRoleUser), agent.RunConfig{}) {
		require.NoError(t, err)
		seen++
		sess := get()
		switch seen {
		case 1:
			assert.True(t, ev.Partial)
			assert.Equal(t, 1, sess.Events().Len(), "partial events are not stored")
		case 2:
			assert.Equal(t, 2, sess.Events().Len())
			_, err := sess.State().Get("cart")
			assert.NoError(t, err, "state delta visible on yield")
		case 3:
			assert.True(t, ev.IsFinalResponse())
			assert.Equal(t, 3, sess.Events().Len())
		}
	}
	assert.Equal(t, 3, seen)
	assert.Equal(t, agent.AuthorUser, get().Events().At(0).Author)
}

func TestRunner_ReusesSession(t *testing.T) {
	svc := session.InMemoryService()
	r, err := New(Config{AppName: "shop", Agent: scriptedAgent(t), SessionService: svc})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		for _, err := range r.Run(ctx, "u", "s", agent.NewTextContent("again", a2a.MessageRoleUser), agent.RunConfig{}) {
			require.NoError(t, err)
		}
	}
	resp, err := svc.Get(ctx, &session.GetRequest{AppName: "shop", UserID: "u", SessionID: "s"})
	require.NoError(t, err)
	assert.Equal(t, 6, resp.Session.Events().Len())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Agent: scriptedAgent(t), SessionService: session.InMemoryService()})
	assert.Error(t, err)
	_, err = New(Config{AppName: "shop", SessionService: session.InMemoryService()})
	assert.Error(t, err)
	_, err = New(Config{AppName: "shop", Agent: scriptedAgent(t)})
	assert.Error(t, err)
}
