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

import (
	"fmt"
	"strings"
)

// Vector index backends.
const (
	VectorChromem  = "chromem"
	VectorQdrant   = "qdrant"
	VectorPinecone = "pinecone"
)

// SearchConfig tunes product search and catalog indexing.
type SearchConfig struct {
	// TopK is the default number of results for agent searches.
	TopK int `yaml:"top_k,omitempty"`

	// APITopKMax caps the limit accepted by the REST product listing.
	APITopKMax int `yaml:"api_top_k_max,omitempty"`

	// IndexConcurrency bounds parallel embedding calls while indexing.
	IndexConcurrency int `yaml:"index_concurrency,omitempty"`

	// IndexOnStart indexes the catalog when the server starts.
	IndexOnStart bool `yaml:"index_on_start,omitempty"`

	Vector VectorConfig `yaml:"vector,omitempty"`
}

// VectorConfig selects the vector index holding catalog embeddings.
//
// Example:
//
//	search:
//	  vector:
//	    provider: qdrant
//	    host: localhost
//	    port: 6334
type VectorConfig struct {
	Provider   string `yaml:"provider,omitempty"`
	Collection string `yaml:"collection,omitempty"`

	// PersistPath enables chromem persistence.
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`

	// Host, Port, APIKey and UseTLS address qdrant or pinecone.
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

func (c *SearchConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.APITopKMax == 0 {
		c.APITopKMax = 50
	}
	if c.IndexConcurrency == 0 {
		c.IndexConcurrency = 4
	}
	c.Vector.SetDefaults()
}

func (c *SearchConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.APITopKMax < 1 {
		return fmt.Errorf("api_top_k_max must be positive")
	}
	if c.IndexConcurrency < 1 {
		return fmt.Errorf("index_concurrency must be positive")
	}
	return c.Vector.Validate()
}

func (c *VectorConfig) SetDefaults() {
	c.Provider = strings.ToLower(c.Provider)
	if c.Provider == "" {
		c.Provider = VectorChromem
	}
	if c.Collection == "" {
		c.Collection = "catalog_items"
	}
	if c.Provider == VectorQdrant {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 6334
		}
	}
}

func (c *VectorConfig) Validate() error {
	switch c.Provider {
	case VectorChromem, VectorQdrant:
		return nil
	case VectorPinecone:
		if c.APIKey == "" {
			return fmt.Errorf("pinecone requires api_key")
		}
		if c.Host == "" {
			return fmt.Errorf("pinecone requires the index host")
		}
		return nil
	default:
		return fmt.Errorf("invalid vector provider %q (valid: chromem, qdrant, pinecone)", c.Provider)
	}
}

// UploadConfig limits images attached to A2A messages.
type UploadConfig struct {
	MaxMB            int      `yaml:"max_mb,omitempty"`
	AllowedMimeTypes []string `yaml:"allowed_mime_types,omitempty"`
}

func (c *UploadConfig) SetDefaults() {
	if c.MaxMB == 0 {
		c.MaxMB = 10
	}
	if len(c.AllowedMimeTypes) == 0 {
		c.AllowedMimeTypes = []string{"image/jpeg", "image/png", "image/webp"}
	}
}

func (c *UploadConfig) Validate() error {
	if c.MaxMB < 1 {
		return fmt.Errorf("upload max_mb must be positive")
	}
	return nil
}

// MaxBytes returns the upload limit in bytes.
func (c *UploadConfig) MaxBytes() int {
	return c.MaxMB * 1024 * 1024
}
