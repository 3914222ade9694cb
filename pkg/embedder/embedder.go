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

// Package embedder turns product text and images into vectors in a shared
// space, so a text query can find products by their pictures.
package embedder

import (
	"context"
	"fmt"

	"github.com/kadirpekel/storefront/pkg/config"
)

// Embedder produces embeddings for text and images.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error)

	// Dimension is the length of every returned vector.
	Dimension() int
	Model() string
}

// New builds the configured Gemini embedder behind an LRU cache.
func New(ctx context.Context, cfg *config.EmbedderConfig) (Embedder, error) {
	g, err := NewGemini(ctx, GeminiConfig{
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		Project:   cfg.Project,
		Location:  cfg.Location,
		Dimension: cfg.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if cfg.CacheSize == 0 {
		return g, nil
	}
	return NewCached(g, cfg.CacheSize)
}
