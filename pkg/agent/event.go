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

package agent

import (
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// AuthorUser marks events carrying user input or tool results.
const AuthorUser = "user"

// Event is one step of an agent run: model text, tool calls, tool results
// or an error. Events are persisted to the session (unless Partial) and
// consumed by the server's turn loop.
type Event struct {
	ID           string
	Timestamp    time.Time
	InvocationID string

	// Author is the producing agent's name, or AuthorUser.
	Author string

	Message *a2a.Message

	Actions EventActions

	// Partial marks a streaming text chunk. Partial events are never
	// persisted and never final.
	Partial bool

	ToolCalls   []ToolCallState
	ToolResults []ToolResultState

	ErrorMessage string
}

// ToolCallState is a tool invocation requested by the model.
type ToolCallState struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResultState is the outcome of one tool invocation.
type ToolResultState struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// EventActions are side effects carried by an event.
type EventActions struct {
	// StateDelta holds session state writes. A nil value removes the key.
	StateDelta map[string]any
}

// NewEvent returns an event with a fresh ID and timestamp.
func NewEvent(invocationID string) *Event {
	return &Event{
		ID:           uuid.NewString(),
		Timestamp:    time.Now(),
		InvocationID: invocationID,
		Actions:      EventActions{StateDelta: make(map[string]any)},
	}
}

// IsFinalResponse reports whether the event ends the agent's turn: it is
// complete (not partial) and neither requests nor reports tool work.
func (e *Event) IsFinalResponse() bool {
	if e.Partial {
		return false
	}
	return !e.HasToolCalls() && !e.HasToolResults()
}

func (e *Event) HasToolCalls() bool {
	return len(e.ToolCalls) > 0 || hasDataPart(e.Message, "tool_use")
}

func (e *Event) HasToolResults() bool {
	return len(e.ToolResults) > 0 || hasDataPart(e.Message, "tool_result")
}

func hasDataPart(msg *a2a.Message, kind string) bool {
	if msg == nil {
		return false
	}
	for _, part := range msg.Parts {
		if dp, ok := part.(a2a.DataPart); ok {
			if t, _ := dp.Data["type"].(string); t == kind {
				return true
			}
		}
	}
	return false
}

// TextContent concatenates the text parts of the event's message.
func (e *Event) TextContent() string {
	if e.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range e.Message.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Content is message content before it becomes an a2a.Message.
type Content struct {
	Parts []a2a.Part
	Role  a2a.MessageRole
}

func NewTextContent(text string, role a2a.MessageRole) *Content {
	return &Content{Parts: []a2a.Part{a2a.TextPart{Text: text}}, Role: role}
}

func (c *Content) ToMessage() *a2a.Message {
	if c == nil {
		return nil
	}
	return a2a.NewMessage(c.Role, c.Parts...)
}

func (c *Content) AddText(text string) {
	c.Parts = append(c.Parts, a2a.TextPart{Text: text})
}

func (c *Content) AddPart(part a2a.Part) {
	c.Parts = append(c.Parts, part)
}
