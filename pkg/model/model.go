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

// Package model defines the LLM abstraction used by the agent.
package model

import (
	"context"
	"iter"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/storefront/pkg/tool"
)

// LLM generates content for a conversation.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// GenerateContent produces responses for the given request.
	//
	// When stream is false it yields exactly one Response with Partial false.
	// When stream is true it yields partial text chunks with Partial true and
	// finally one aggregated Response with Partial false.
	GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error]

	Close() error
}

// Request is one model call.
type Request struct {
	// Messages is the conversation history, oldest first.
	Messages []*a2a.Message

	Tools  []tool.Definition
	Config *GenerateConfig

	SystemInstruction string
}

// GenerateConfig holds sampling parameters. Nil fields use provider defaults.
type GenerateConfig struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Clone returns a deep copy.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Temperature != nil {
		v := *c.Temperature
		clone.Temperature = &v
	}
	if c.MaxTokens != nil {
		v := *c.MaxTokens
		clone.MaxTokens = &v
	}
	if c.TopP != nil {
		v := *c.TopP
		clone.TopP = &v
	}
	return &clone
}

// Response is a model output, either a streaming chunk or complete.
type Response struct {
	Content *Content

	// Partial marks a streaming delta. The aggregated response that follows
	// the deltas has Partial false and carries the full text.
	Partial bool

	ToolCalls    []tool.ToolCall
	Usage        *Usage
	FinishReason FinishReason
}

// Content is the body of a response.
type Content struct {
	Parts []a2a.Part
	Role  a2a.MessageRole
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonContent   FinishReason = "content_filter"
)

// TextContent concatenates the text parts.
func (r *Response) TextContent() string {
	if r == nil || r.Content == nil {
		return ""
	}
	var text string
	for _, part := range r.Content.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ToolUsePart encodes a tool call the way it is kept in history.
func ToolUsePart(tc tool.ToolCall) a2a.DataPart {
	return a2a.DataPart{Data: map[string]any{
		"type":      "tool_use",
		"id":        tc.ID,
		"name":      tc.Name,
		"arguments": tc.Args,
	}}
}

// ToolResultPart encodes a tool result the way it is kept in history.
func ToolResultPart(callID, name, content string, isError bool) a2a.DataPart {
	return a2a.DataPart{Data: map[string]any{
		"type":         "tool_result",
		"tool_call_id": callID,
		"tool_name":    name,
		"content":      content,
		"is_error":     isError,
	}}
}
