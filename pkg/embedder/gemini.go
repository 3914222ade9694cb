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

package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kadirpekel/storefront/pkg/model/gemini"
)

// GeminiConfig configures the Gemini embedder.
type GeminiConfig struct {
	Model     string
	APIKey    string
	Project   string
	Location  string
	Dimension int
}

// Gemini embeds with a multimodal embedding model through genai.
type Gemini struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGemini creates a client for the API key or the Vertex project.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1408
	}
	cc, err := gemini.ClientConfig(cfg.APIKey, cfg.Project, cfg.Location)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

func (g *Gemini) Dimension() int { return g.dimension }
func (g *Gemini) Model() string  { return g.model }

func (g *Gemini) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}
	return g.embed(ctx, &genai.Part{Text: text})
}

func (g *Gemini) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot embed empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return g.embed(ctx, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}})
}

func (g *Gemini) embed(ctx context.Context, part *genai.Part) ([]float32, error) {
	dim := int32(g.dimension)
	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{part}, Role: "user"}},
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("embedding response is empty")
	}
	values := resp.Embeddings[0].Values
	if len(values) != g.dimension {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(values), g.dimension)
	}
	return values, nil
}

var _ Embedder = (*Gemini)(nil)
