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

package config

import "fmt"

// LLMConfig configures the chat model driving the shopping agent.
//
// Example:
//
//	llm:
//	  model: gemini-2.5-flash
//	  api_key: ${GOOGLE_API_KEY}
//	  temperature: 0.2
type LLMConfig struct {
	// Provider is currently always gemini.
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`

	// Project and Location select the Vertex AI backend instead of the
	// Gemini API when Project is set.
	Project  string `yaml:"project,omitempty"`
	Location string `yaml:"location,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`

	// Streaming forwards partial text to the client as it is generated.
	Streaming *bool `yaml:"streaming,omitempty"`

	// MaxIterations bounds model calls per turn.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// HistoryTokens bounds the conversation history sent per call.
	HistoryTokens int `yaml:"history_tokens,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "gemini"
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.Location == "" {
		c.Location = "us-central1"
	}
	if c.Temperature == nil {
		t := 0.2
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Streaming == nil {
		s := true
		c.Streaming = &s
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 12
	}
	if c.HistoryTokens == 0 {
		c.HistoryTokens = 32000
	}
}

func (c *LLMConfig) Validate() error {
	if c.Provider != "gemini" {
		return fmt.Errorf("unsupported llm provider %q (valid: gemini)", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive")
	}
	return nil
}

// StreamingEnabled reports whether partial responses are requested.
func (c *LLMConfig) StreamingEnabled() bool {
	return c.Streaming != nil && *c.Streaming
}

// EmbedderConfig configures the multimodal embedding model used for
// catalog search.
type EmbedderConfig struct {
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	Project  string `yaml:"project,omitempty"`
	Location string `yaml:"location,omitempty"`

	// Dimension is the requested output dimensionality.
	Dimension int `yaml:"dimension,omitempty"`

	// CacheSize bounds the embedding LRU cache (entries).
	CacheSize int `yaml:"cache_size,omitempty"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "multimodalembedding@001"
	}
	if c.Location == "" {
		c.Location = "us-central1"
	}
	if c.Dimension == 0 {
		c.Dimension = 1408
	}
	if c.CacheSize == 0 {
		c.CacheSize = 1024
	}
}

func (c *EmbedderConfig) Validate() error {
	if c.Dimension < 1 {
		return fmt.Errorf("embedder dimension must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("embedder cache_size must be non-negative")
	}
	return nil
}
