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

// Package modeltest provides a scripted model.LLM for tests.
package modeltest

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/kadirpekel/storefront/pkg/model"
	"github.com/kadirpekel/storefront/pkg/tool"
)

// ErrScriptExhausted is returned when the model is called more times than
// it has scripted turns.
var ErrScriptExhausted = errors.New("modeltest: no scripted response left")

// Turn is one scripted model reply: optional text chunks and tool calls.
type Turn struct {
	Chunks    []string
	ToolCalls []tool.ToolCall
	Err       error
}

// Text is a turn that answers with the given chunks.
func Text(chunks ...string) Turn { return Turn{Chunks: chunks} }

// Call is a turn that requests one tool call.
func Call(id, name string, args map[string]any) Turn {
	return Turn{ToolCalls: []tool.ToolCall{{ID: id, Name: name, Args: args}}}
}

// LLM replays turns in order and records every request.
type LLM struct {
	mu       sync.Mutex
	turns    []Turn
	requests []*model.Request
}

func New(turns ...Turn) *LLM {
	return &LLM{turns: turns}
}

func (m *LLM) Name() string { return "scripted" }
func (m *LLM) Close() error { return nil }

// Requests returns the requests received so far.
func (m *LLM) Requests() []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Request(nil), m.requests...)
}

func (m *LLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		m.mu.Lock()
		m.requests = append(m.requests, req)
		if len(m.turns) == 0 {
			m.mu.Unlock()
			yield(nil, ErrScriptExhausted)
			return
		}
		turn := m.turns[0]
		m.turns = m.turns[1:]
		m.mu.Unlock()

		if turn.Err != nil {
			yield(nil, turn.Err)
			return
		}

		agg := model.NewStreamingAggregator()
		for _, chunk := range turn.Chunks {
			for resp, err := range agg.ProcessTextDelta(chunk) {
				if stream && !yield(resp, err) {
					return
				}
			}
		}
		for _, tc := range turn.ToolCalls {
			agg.ProcessToolCall(tc)
		}
		agg.SetFinishReason(model.FinishReasonStop)
		if final := agg.Close(); final != nil {
			yield(final, nil)
			return
		}
		yield(&model.Response{Content: &model.Content{}, FinishReason: model.FinishReasonStop}, nil)
	}
}

var _ model.LLM = (*LLM)(nil)
