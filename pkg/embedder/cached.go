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
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// Cached memoizes another embedder. Keys are "text:"+text and
// "image:"+sha256(bytes); concurrent misses on one key share a call.
type Cached struct {
	next  Embedder
	cache *lru.Cache
	group singleflight.Group
}

// NewCached wraps next with an LRU of size entries.
func NewCached(next Embedder, size int) (*Cached, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Dimension() int { return c.next.Dimension() }
func (c *Cached) Model() string  { return c.next.Model() }

// Len reports the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }

func (c *Cached) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.get(ctx, "text:"+text, func() ([]float32, error) {
		return c.next.EmbedText(ctx, text)
	})
}

func (c *Cached) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	sum := sha256.Sum256(data)
	return c.get(ctx, "image:"+hex.EncodeToString(sum[:]), func() ([]float32, error) {
		return c.next.EmbedImage(ctx, data, mimeType)
	})
}

func (c *Cached) get(_ context.Context, key string, compute func() ([]float32, error)) ([]float32, error) {
	if v, ok := c.cache.Get(key); ok {
		return v.([]float32), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		vec, err := compute()
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

var _ Embedder = (*Cached)(nil)
