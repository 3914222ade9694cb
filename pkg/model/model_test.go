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

package model

import (
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/tool"
)

func collect(t *testing.T, seq func(func(*Response, error) bool)) []*Response {
	t.Helper()
	var out []*Response
	seq(func(r *Response, err error) bool {
		require.NoError(t, err)
		out = append(out, r)
		return true
	})
	return out
}

func TestStreamingAggregator_Text(t *testing.T) {
	agg := NewStreamingAggregator()

	first := collect(t, agg.ProcessTextDelta("Here are "))
	second := collect(t, agg.ProcessTextDelta("three shoes."))
	assert.Empty(t, collect(t, agg.ProcessTextDelta("")))

	require.Len(t, first, 1)
	assert.True(t, first[0].Partial)
	assert.Equal(t, "Here are ", first[0].TextContent())
	assert.Equal(t, "three shoes.", second[0].TextContent())

	agg.SetFinishReason(FinishReasonStop)
	final := agg.Close()
	require.NotNil(t, final)
	assert.False(t, final.Partial)
	assert.Equal(t, "Here are three shoes.", final.TextContent())
	assert.Equal(t, FinishReasonStop, final.FinishReason)

	assert.Nil(t, agg.Close(), "aggregator resets after close")
}

func TestStreamingAggregator_ToolCalls(t *testing.T) {
	agg := NewStreamingAggregator()
	call := tool.ToolCall{ID: "c1", Name: "add_to_cart", Args: map[string]any{"product_id": "p1"}}
	agg.ProcessToolCall(call)
	agg.ProcessToolCall(call)

	final := agg.Close()
	require.NotNil(t, final)
	require.Len(t, final.ToolCalls, 1)
	assert.True(t, final.HasToolCalls())
	assert.Equal(t, FinishReasonToolCalls, final.FinishReason)

	require.Len(t, final.Content.Parts, 1)
	dp, ok := final.Content.Parts[0].(a2a.DataPart)
	require.True(t, ok)
	assert.Equal(t, "tool_use", dp.Data["type"])
	assert.Equal(t, "add_to_cart", dp.Data["name"])
}

func TestGenerateConfig_Clone(t *testing.T) {
	temp := 0.2
	cfg := &GenerateConfig{Temperature: &temp}
	clone := cfg.Clone()
	*clone.Temperature = 0.9
	assert.Equal(t, 0.2, *cfg.Temperature)
	assert.Nil(t, (*GenerateConfig)(nil).Clone())
}
