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
	"errors"
	"iter"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_IsFinalResponse(t *testing.T) {
	text := NewEvent("inv")
	text.Message = a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "done"})
	assert.True(t, text.IsFinalResponse())

	partial := NewEvent("inv")
	partial.Partial = true
	assert.False(t, partial.IsFinalResponse())

	call := NewEvent("inv")
	call.ToolCalls = []ToolCallState{{ID: "1", Name: "get_cart"}}
	assert.False(t, call.IsFinalResponse())

	result := NewEvent("inv")
	result.Message = a2a.NewMessage(a2a.MessageRoleUser, a2a.DataPart{Data: map[string]any{"type": "tool_result"}})
	assert.True(t, result.HasToolResults())
	assert.False(t, result.IsFinalResponse())
}

func TestEvent_TextContent(t *testing.T) {
	ev := NewEvent("inv")
	assert.Empty(t, ev.TextContent())
	ev.Message = a2a.NewMessage(a2a.MessageRoleAgent,
		a2a.TextPart{Text: "Your cart "},
		a2a.DataPart{Data: map[string]any{"type": "tool_use"}},
		a2a.TextPart{Text: "is empty."},
	)
	assert.Equal(t, "Your cart is empty.", ev.TextContent())
}

type mapState map[string]any

func (s mapState) Get(k string) (any, error) {
	v, ok := s[k]
	if !ok {
		return nil, errors.New("missing")
	}
	return v, nil
}
func (s mapState) Set(k string, v any) error { s[k] = v; return nil }
func (s mapState) Delete(k string) error     { delete(s, k); return nil }
func (s mapState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for k, v := range s {
			if !yield(k, v) {
				return
			}
		}
	}
}

func TestTrackedState(t *testing.T) {
	base := mapState{"cart": []any{}, "pending_order_summary": map[string]any{}}
	delta := map[string]any{}
	ts := NewTrackedState(base, delta)

	require.NoError(t, ts.Set("cart", []any{"x"}))
	require.NoError(t, ts.Delete("pending_order_summary"))

	v, err := ts.Get("cart")
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, v, "writes are visible immediately")
	assert.Equal(t, []any{"x"}, base["cart"])

	assert.Equal(t, map[string]any{"cart": []any{"x"}, "pending_order_summary": nil}, delta)
	assert.Equal(t, map[string]any{"cart": []any{"x"}}, StateMap(ts))
	assert.Empty(t, StateMap(nil))
}

func TestContent_ToMessage(t *testing.T) {
	c := NewTextContent("hi", a2a.MessageRoleUser)
	c.AddPart(a2a.DataPart{Data: map[string]any{"k": "v"}})
	msg := c.ToMessage()
	assert.Equal(t, a2a.MessageRoleUser, msg.Role)
	assert.Len(t, msg.Parts, 2)
	assert.Nil(t, (*Content)(nil).ToMessage())
}
