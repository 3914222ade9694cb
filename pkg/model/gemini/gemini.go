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

// Package gemini implements model.LLM on the Google genai SDK, against
// either the Gemini API (API key) or Vertex AI (project and location).
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/a2aproject/a2a-go/a2a"
	"google.golang.org/genai"

	"github.com/kadirpekel/storefront/pkg/model"
	"github.com/kadirpekel/storefront/pkg/tool"
)

// Config configures the Gemini model.
type Config struct {
	// APIKey selects the Gemini API backend. When empty, Project and
	// Location select Vertex AI with application default credentials.
	APIKey   string
	Project  string
	Location string

	Model       string
	MaxTokens   int
	Temperature *float64
}

type geminiModel struct {
	client *genai.Client
	name   string
	config Config
}

// New creates a Gemini model.
func New(ctx context.Context, cfg Config) (model.LLM, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	cc, err := clientConfig(cfg.APIKey, cfg.Project, cfg.Location)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiModel{client: client, name: cfg.Model, config: cfg}, nil
}

// ClientConfig picks the genai backend from the credentials available.
// It is shared with the embedder.
func ClientConfig(apiKey, project, location string) (*genai.ClientConfig, error) {
	return clientConfig(apiKey, project, location)
}

func clientConfig(apiKey, project, location string) (*genai.ClientConfig, error) {
	switch {
	case apiKey != "":
		return &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}, nil
	case project != "":
		if location == "" {
			location = "us-central1"
		}
		return &genai.ClientConfig{Project: project, Location: location, Backend: genai.BackendVertexAI}, nil
	default:
		return nil, fmt.Errorf("either an API key or a Vertex AI project is required")
	}
}

func (m *geminiModel) Name() string { return m.name }
func (m *geminiModel) Close() error { return nil }

func (m *geminiModel) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	if stream {
		return m.generateStream(ctx, req)
	}
	return func(yield func(*model.Response, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *geminiModel) generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	contents := buildContents(req.Messages)
	genResp, err := m.client.Models.GenerateContent(ctx, m.name, contents, m.buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	return parseResponse(genResp)
}

func (m *geminiModel) generateStream(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		agg := model.NewStreamingAggregator()
		contents := buildContents(req.Messages)

		for genResp, err := range m.client.Models.GenerateContentStream(ctx, m.name, contents, m.buildConfig(req)) {
			if err != nil {
				yield(nil, fmt.Errorf("gemini streaming error: %w", err))
				return
			}
			if len(genResp.Candidates) == 0 {
				continue
			}
			cand := genResp.Candidates[0]
			if cand.FinishReason != "" {
				agg.SetFinishReason(mapFinishReason(cand.FinishReason))
			}
			if genResp.UsageMetadata != nil {
				agg.SetUsage(usageOf(genResp.UsageMetadata))
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" && !part.Thought {
					for resp, err := range agg.ProcessTextDelta(part.Text) {
						if !yield(resp, err) {
							return
						}
					}
				}
				if part.FunctionCall != nil {
					agg.ProcessToolCall(toolCallOf(part.FunctionCall))
				}
			}
		}

		if final := agg.Close(); final != nil {
			yield(final, nil)
			return
		}
		yield(&model.Response{Content: &model.Content{Role: a2a.MessageRoleAgent}, FinishReason: model.FinishReasonStop}, nil)
	}
}

func (m *geminiModel) buildConfig(req *model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}, Role: "user"}
	}
	if c := req.Config; c != nil {
		if c.Temperature != nil {
			cfg.Temperature = genai.Ptr(float32(*c.Temperature))
		}
		if c.MaxTokens != nil {
			cfg.MaxOutputTokens = int32(*c.MaxTokens)
		}
		if c.TopP != nil {
			cfg.TopP = genai.Ptr(float32(*c.TopP))
		}
	}
	if cfg.Temperature == nil && m.config.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*m.config.Temperature))
	}
	if cfg.MaxOutputTokens == 0 && m.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(m.config.MaxTokens)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = buildTools(req.Tools)
	}
	return cfg
}

// buildContents converts history messages to genai contents. Messages
// without convertible parts are dropped.
func buildContents(messages []*a2a.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		if c := messageToContent(msg); c != nil {
			contents = append(contents, c)
		}
	}
	return contents
}

func messageToContent(msg *a2a.Message) *genai.Content {
	if msg == nil {
		return nil
	}
	var parts []*genai.Part
	for _, p := range msg.Parts {
		switch part := p.(type) {
		case a2a.TextPart:
			if part.Text != "" {
				parts = append(parts, &genai.Part{Text: part.Text})
			}
		case a2a.DataPart:
			if gp := dataPartToGenai(part); gp != nil {
				parts = append(parts, gp)
			}
		case a2a.FilePart:
			switch f := part.File.(type) {
			case a2a.FileBytes:
				parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: f.MimeType, Data: decodeFileBytes(f.Bytes)}})
			case a2a.FileURI:
				parts = append(parts, &genai.Part{FileData: &genai.FileData{MIMEType: f.MimeType, FileURI: f.URI}})
			}
		}
	}
	if len(parts) == 0 {
		return nil
	}
	role := "user"
	if msg.Role == a2a.MessageRoleAgent {
		role = "model"
	}
	return &genai.Content{Parts: parts, Role: role}
}

func dataPartToGenai(part a2a.DataPart) *genai.Part {
	kind, _ := part.Data["type"].(string)
	switch kind {
	case "tool_use":
		name, _ := part.Data["name"].(string)
		if name == "" {
			return nil
		}
		id, _ := part.Data["id"].(string)
		args, _ := part.Data["arguments"].(map[string]any)
		return &genai.Part{FunctionCall: &genai.FunctionCall{ID: id, Name: name, Args: args}}
	case "tool_result":
		name, _ := part.Data["tool_name"].(string)
		id, _ := part.Data["tool_call_id"].(string)
		content, _ := part.Data["content"].(string)
		isError, _ := part.Data["is_error"].(bool)
		return &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       id,
			Name:     name,
			Response: toolResponse(content, isError),
		}}
	default:
		data, err := json.Marshal(part.Data)
		if err != nil {
			return nil
		}
		return &genai.Part{Text: string(data)}
	}
}

// toolResponse wraps a tool result for FunctionResponse. JSON object results
// are passed through; anything else goes under "result" or "error".
func toolResponse(content string, isError bool) map[string]any {
	if isError {
		return map[string]any{"error": content}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		return obj
	}
	return map[string]any{"result": content}
}

func decodeFileBytes(s string) []byte {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b
	}
	return []byte(s)
}

func buildTools(tools []tool.Definition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGenaiSchema(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
}

func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = schemaTypes[t]
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if pm, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(pm)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}

func parseResponse(genResp *genai.GenerateContentResponse) (*model.Response, error) {
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}
	cand := genResp.Candidates[0]

	resp := &model.Response{
		Content:      &model.Content{Role: a2a.MessageRoleAgent},
		FinishReason: mapFinishReason(cand.FinishReason),
	}
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part.Text != "" && !part.Thought {
				resp.Content.Parts = append(resp.Content.Parts, a2a.TextPart{Text: part.Text})
			}
			if part.FunctionCall != nil {
				tc := toolCallOf(part.FunctionCall)
				resp.ToolCalls = append(resp.ToolCalls, tc)
				resp.Content.Parts = append(resp.Content.Parts, model.ToolUsePart(tc))
			}
		}
	}
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = model.FinishReasonToolCalls
	}
	if genResp.UsageMetadata != nil {
		resp.Usage = usageOf(genResp.UsageMetadata)
	}
	return resp, nil
}

func toolCallOf(fc *genai.FunctionCall) tool.ToolCall {
	return tool.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}
}

func usageOf(u *genai.GenerateContentResponseUsageMetadata) *model.Usage {
	return &model.Usage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

func mapFinishReason(reason genai.FinishReason) model.FinishReason {
	switch reason {
	case genai.FinishReasonMaxTokens:
		return model.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		return model.FinishReasonContent
	default:
		return model.FinishReasonStop
	}
}

var _ model.LLM = (*geminiModel)(nil)
