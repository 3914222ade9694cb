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

package llmagent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/agent/llmagent"
	"github.com/kadirpekel/storefront/pkg/model/modeltest"
	"github.com/kadirpekel/storefront/pkg/runner"
	"github.com/kadirpekel/storefront/pkg/session"
	"github.com/kadirpekel/storefront/pkg/tool"
	"github.com/kadirpekel/storefront/pkg/tool/functiontool"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required"`
}

func searchTool() tool.Tool {
	return functiontool.Must(
		functiontool.Config{Name: "text_vector_search", Description: "Search products"},
		func(ctx tool.Context, args searchArgs) (map[string]any, error) {
			results := []any{map[string]any{"id": "p1", "name": args.Query}}
			if err := ctx.State().Set("current_results", results); err != nil {
				return nil, err
			}
			return map[string]any{"count": 1}, nil
		},
	)
}

type noArgs struct{}

func failingTool() tool.Tool {
	return functiontool.Must(
		functiontool.Config{Name: "get_cart", Description: "Fails"},
		func(tool.Context, noArgs) (map[string]any, error) { return nil, errors.New("database is down") },
	)
}

func panickingTool() tool.Tool {
	return functiontool.Must(
		functiontool.Config{Name: "clear_cart", Description: "Panics"},
		func(tool.Context, noArgs) (map[string]any, error) { panic("boom") },
	)
}

func run(t *testing.T, llm *modeltest.LLM, streaming bool, tools ...tool.Tool) ([]*agent.Event, session.Service, error) {
	t.Helper()
	a, err := llmagent.New(llmagent.Config{Name: "shopping_assistant", Model: llm, Tools: tools, MaxIterations: 4})
	require.NoError(t, err)
	svc := session.InMemoryService()
	r, err := runner.New(runner.Config{AppName: "shop", Agent: a, SessionService: svc})
	require.NoError(t, err)

	var events []*agent.Event
	var runErr error
	content := agent.NewTextContent("running shoes", a2a.MessageRoleUser)
	for ev, err := range r.Run(context.Background(), "u", "s", content, agent.RunConfig{Streaming: streaming}) {
		if err != nil {
			runErr = err
			break
		}
		events = append(events, ev)
	}
	return events, svc, runErr
}

func TestFlow_ToolCallThenAnswer(t *testing.T) {
	llm := modeltest.New(
		modeltest.Call("", "text_vector_search", map[string]any{"query": "running shoes"}),
		modeltest.Text("Found ", "one pair."),
	)
	events, svc, err := run(t, llm, true, searchTool())
	require.NoError(t, err)

	var partial []string
	for _, ev := range events {
		if ev.Partial {
			partial = append(partial, ev.TextContent())
		}
	}
	assert.Equal(t, []string{"Found ", "one pair."}, partial)

	last := events[len(events)-1]
	assert.True(t, last.IsFinalResponse())
	assert.Equal(t, "Found one pair.", last.TextContent())

	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.IsFinalResponse(), "only the last event is final")
	}

	callEvent := events[0]
	require.Len(t, callEvent.ToolCalls, 1)
	assert.NotEmpty(t, callEvent.ToolCalls[0].ID, "missing call IDs are populated")

	resultEvent := events[1]
	require.Len(t, resultEvent.ToolResults, 1)
	assert.Equal(t, callEvent.ToolCalls[0].ID, resultEvent.ToolResults[0].ToolCallID)
	assert.False(t, resultEvent.ToolResults[0].IsError)
	assert.Contains(t, resultEvent.Actions.StateDelta, "current_results")

	got, err := svc.Get(context.Background(), &session.GetRequest{AppName: "shop", UserID: "u", SessionID: "s"})
	require.NoError(t, err)
	v, err := got.Session.State().Get("current_results")
	require.NoError(t, err)
	assert.Len(t, v, 1)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Messages, 1, "user message only")
	assert.Len(t, reqs[1].Messages, 3, "user, tool call, tool result")
	assert.Len(t, reqs[0].Tools, 1)
}

func TestFlow_ToolErrorsBecomeResults(t *testing.T) {
	llm := modeltest.New(
		modeltest.Turn{ToolCalls: []tool.ToolCall{
			{ID: "a", Name: "get_cart"},
			{ID: "b", Name: "clear_cart"},
			{ID: "c", Name: "no_such_tool"},
		}},
		modeltest.Text("Sorry."),
	)
	events, _, err := run(t, llm, false, failingTool(), panickingTool())
	require.NoError(t, err)

	results := events[1].ToolResults
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.IsError, r.ToolName)
	}
	assert.Contains(t, results[0].Content, "database is down")
	assert.Equal(t, "Sorry.", events[len(events)-1].TextContent())
}

func TestFlow_MaxIterations(t *testing.T) {
	var turns []modeltest.Turn
	for i := 0; i < 5; i++ {
		turns = append(turns, modeltest.Call("", "text_vector_search", map[string]any{"query": "x"}))
	}
	_, _, err := run(t, modeltest.New(turns...), false, searchTool())
	assert.ErrorContains(t, err, "exceeded")
}

func TestFlow_ModelError(t *testing.T) {
	_, _, err := run(t, modeltest.New(modeltest.Turn{Err: errors.New("quota")}), false)
	assert.ErrorContains(t, err, "quota")
}

func TestNew_Validation(t *testing.T) {
	_, err := llmagent.New(llmagent.Config{Model: modeltest.New()})
	assert.Error(t, err)
	_, err = llmagent.New(llmagent.Config{Name: "a"})
	assert.Error(t, err)
	_, err = llmagent.New(llmagent.Config{Name: "a", Model: modeltest.New(), Tools: []tool.Tool{searchTool(), searchTool()}})
	assert.Error(t, err)
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(text) }

func TestHistory_TrimsWholeTurns(t *testing.T) {
	llm := modeltest.New(modeltest.Text("second answer"))
	a, err := llmagent.New(llmagent.Config{
		Name: "shopping_assistant", Model: llm,
		HistoryTokens: 60, TokenCounter: wordCounter{},
	})
	require.NoError(t, err)

	svc := session.InMemoryService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &session.CreateRequest{AppName: "shop", UserID: "u", SessionID: "s"})
	require.NoError(t, err)
	for _, m := range []struct {
		author string
		role   a2a.MessageRole
		text   string
	}{
		{agent.AuthorUser, a2a.MessageRoleUser, "a very long first question about shoes"},
		{"shopping_assistant", a2a.MessageRoleAgent, "a very long first answer about shoes"},
	} {
		ev := agent.NewEvent("inv-0")
		ev.Author = m.author
		ev.Message = a2a.NewMessage(m.role, a2a.TextPart{Text: m.text})
		require.NoError(t, svc.AppendEvent(ctx, created.Session, ev))
	}

	r, err := runner.New(runner.Config{AppName: "shop", Agent: a, SessionService: svc})
	require.NoError(t, err)
	for _, err := range r.Run(ctx, "u", "s", agent.NewTextContent("and socks?", a2a.MessageRoleUser), agent.RunConfig{}) {
		require.NoError(t, err)
	}

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 1, "older turn dropped")
	assert.Equal(t, a2a.MessageRoleUser, reqs[0].Messages[0].Role)
}
