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

package llmagent

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/model"
	"github.com/kadirpekel/storefront/pkg/tool"
)

// flow is the reasoning loop: call the model, run the requested tools, and
// call the model again until it answers without tool calls.
//
// Every event is yielded before the next step starts. The runner persists
// it on yield, so each step rebuilds its history from the session.
type flow struct {
	agent *llmAgent
}

func newFlow(a *llmAgent) *flow {
	return &flow{agent: a}
}

func (f *flow) run(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		for iteration := 0; iteration < f.agent.maxIterations; iteration++ {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}

			var last *agent.Event
			for ev, err := range f.runOneStep(ctx) {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(ev, nil) {
					return
				}
				if !ev.Partial {
					last = ev
				}
			}

			if last == nil || last.IsFinalResponse() || ctx.Ended() {
				return
			}
		}
		yield(nil, fmt.Errorf("reasoning loop exceeded %d iterations", f.agent.maxIterations))
	}
}

func (f *flow) runOneStep(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		instruction, err := f.agent.systemInstruction(ctx)
		if err != nil {
			yield(nil, fmt.Errorf("failed to build instruction: %w", err))
			return
		}

		req := &model.Request{
			Messages:          f.agent.buildMessages(ctx),
			Tools:             f.agent.definitions,
			Config:            f.agent.generateConfig.Clone(),
			SystemInstruction: instruction,
		}

		stream := ctx.RunConfig().Streaming
		var final *model.Response
		for resp, err := range f.agent.model.GenerateContent(ctx, req, stream) {
			if err != nil {
				yield(nil, fmt.Errorf("model call failed: %w", err))
				return
			}
			if resp == nil {
				continue
			}
			if resp.Partial {
				if !yield(f.partialEvent(ctx, resp), nil) {
					return
				}
				continue
			}
			final = resp
		}
		if final == nil {
			yield(nil, fmt.Errorf("model returned no response"))
			return
		}

		populateFunctionCallIDs(final)
		if !yield(f.modelEvent(ctx, final), nil) {
			return
		}

		if final.HasToolCalls() {
			yield(f.handleToolCalls(ctx, final), nil)
		}
	}
}

func (f *flow) partialEvent(ctx agent.InvocationContext, resp *model.Response) *agent.Event {
	ev := agent.NewEvent(ctx.InvocationID())
	ev.Author = f.agent.name
	ev.Partial = true
	if resp.Content != nil {
		ev.Message = a2a.NewMessage(a2a.MessageRoleAgent, resp.Content.Parts...)
	}
	return ev
}

func (f *flow) modelEvent(ctx agent.InvocationContext, resp *model.Response) *agent.Event {
	ev := agent.NewEvent(ctx.InvocationID())
	ev.Author = f.agent.name

	var parts []a2a.Part
	if resp.Content != nil {
		for _, p := range resp.Content.Parts {
			if dp, ok := p.(a2a.DataPart); ok && dp.Data["type"] == "tool_use" {
				continue
			}
			parts = append(parts, p)
		}
	}
	for _, tc := range resp.ToolCalls {
		ev.ToolCalls = append(ev.ToolCalls, agent.ToolCallState{ID: tc.ID, Name: tc.Name, Args: tc.Args})
		parts = append(parts, model.ToolUsePart(tc))
	}
	ev.Message = a2a.NewMessage(a2a.MessageRoleAgent, parts...)
	return ev
}

// handleToolCalls runs every requested tool in order and returns one event
// carrying all results and their merged state delta.
func (f *flow) handleToolCalls(ctx agent.InvocationContext, resp *model.Response) *agent.Event {
	ev := agent.NewEvent(ctx.InvocationID())
	ev.Author = f.agent.name

	var parts []a2a.Part
	for _, tc := range resp.ToolCalls {
		toolCtx := newToolContext(ctx, tc.ID)
		content, isError := f.callTool(toolCtx, tc)

		for k, v := range toolCtx.Actions().StateDelta {
			ev.Actions.StateDelta[k] = v
		}
		ev.ToolResults = append(ev.ToolResults, agent.ToolResultState{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Content:    content,
			IsError:    isError,
		})
		parts = append(parts, model.ToolResultPart(tc.ID, tc.Name, content, isError))
	}
	ev.Message = a2a.NewMessage(a2a.MessageRoleUser, parts...)
	return ev
}

func (f *flow) callTool(ctx *toolContext, tc tool.ToolCall) (content string, isError bool) {
	t, ok := f.agent.tools[tc.Name]
	if !ok {
		slog.Warn("Model requested unknown tool", "tool", tc.Name)
		return fmt.Sprintf("tool %q not found", tc.Name), true
	}
	callable, ok := t.(tool.CallableTool)
	if !ok {
		return fmt.Sprintf("tool %q is not callable", tc.Name), true
	}

	start := time.Now()
	result, err := safeCall(callable, ctx, tc.Args)
	if f.agent.onToolCall != nil {
		f.agent.onToolCall(tc.Name, time.Since(start), err)
	}
	if err != nil {
		slog.Debug("Tool returned error", "tool", tc.Name, "error", err)
		return err.Error(), true
	}
	return formatToolResult(result), false
}

func safeCall(t tool.CallableTool, ctx tool.Context, args map[string]any) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", t.Name(), "panic", r)
			err = fmt.Errorf("tool %s failed: %v", t.Name(), r)
		}
	}()
	return t.Call(ctx, args)
}

// formatToolResult renders a tool result as JSON text for the model.
func formatToolResult(result map[string]any) string {
	if result == nil {
		return "{}"
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

const clientFunctionCallIDPrefix = "sf-"

// populateFunctionCallIDs assigns IDs to calls the model left unnamed so
// results can be paired with calls in history.
func populateFunctionCallIDs(resp *model.Response) {
	for i := range resp.ToolCalls {
		if resp.ToolCalls[i].ID == "" {
			resp.ToolCalls[i].ID = clientFunctionCallIDPrefix + uuid.NewString()
		}
	}
}
