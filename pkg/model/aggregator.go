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
	"iter"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/storefront/pkg/tool"
)

// StreamingAggregator turns provider stream chunks into partial responses
// and builds the final aggregated response.
type StreamingAggregator struct {
	text         strings.Builder
	role         a2a.MessageRole
	toolCalls    []tool.ToolCall
	seenCalls    map[string]bool
	usage        *Usage
	finishReason FinishReason
}

func NewStreamingAggregator() *StreamingAggregator {
	return &StreamingAggregator{
		role:      a2a.MessageRoleAgent,
		seenCalls: make(map[string]bool),
	}
}

// ProcessTextDelta yields a partial response carrying only the delta.
func (s *StreamingAggregator) ProcessTextDelta(text string) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if text == "" {
			return
		}
		s.text.WriteString(text)
		yield(&Response{
			Content: &Content{Parts: []a2a.Part{a2a.TextPart{Text: text}}, Role: s.role},
			Partial: true,
		}, nil)
	}
}

// ProcessToolCall records a tool call. Calls repeated with the same ID in
// one stream are dropped. Tool calls are not streamed as partials; they only
// appear in the aggregated response.
func (s *StreamingAggregator) ProcessToolCall(tc tool.ToolCall) {
	if tc.ID != "" && s.seenCalls[tc.ID] {
		return
	}
	s.seenCalls[tc.ID] = true
	s.toolCalls = append(s.toolCalls, tc)
}

func (s *StreamingAggregator) SetUsage(usage *Usage) {
	s.usage = usage
}

func (s *StreamingAggregator) SetFinishReason(reason FinishReason) {
	s.finishReason = reason
}

// Close returns the aggregated response, or nil if nothing was streamed.
func (s *StreamingAggregator) Close() *Response {
	if s.text.Len() == 0 && len(s.toolCalls) == 0 {
		return nil
	}

	var parts []a2a.Part
	if s.text.Len() > 0 {
		parts = append(parts, a2a.TextPart{Text: s.text.String()})
	}
	for _, tc := range s.toolCalls {
		parts = append(parts, ToolUsePart(tc))
	}

	reason := s.finishReason
	if len(s.toolCalls) > 0 {
		reason = FinishReasonToolCalls
	}
	resp := &Response{
		Content:      &Content{Parts: parts, Role: s.role},
		ToolCalls:    s.toolCalls,
		Usage:        s.usage,
		FinishReason: reason,
	}

	s.text.Reset()
	s.toolCalls = nil
	s.seenCalls = make(map[string]bool)
	s.usage = nil
	s.finishReason = ""
	return resp
}
