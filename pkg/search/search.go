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


// Package search answers product queries from the vector index and keeps
// that index in step with the catalog.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kadirpekel/storefront/pkg/embedder"
	"github.com/kadirpekel/storefront/pkg/shop"
	"github.com/kadirpekel/storefront/pkg/vector"
)

// DefaultTopK is used when a caller asks for zero results.
const DefaultTopK = 3

var ErrEmptyQuery = errors.New("search query is empty")

// Catalog is the slice of the store search needs.
type Catalog interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]*shop.Product, error)
}

// Hit is a product with its distance to the query.
type Hit struct {
	Product  *shop.Product
	Distance float64
}

// ToMap renders the hit the way search results are kept in session state.
// product_image_url falls back to picture.
func (h Hit) ToMap() map[string]any {
	m := h.Product.ToMap()
	m["product_image_url"] = h.Product.ImageURL()
	m["distance"] = h.Distance
	return m
}

// Service runs text and image similarity searches over the catalog.
type Service struct {
	embedder   embedder.Embedder
	index      vector.Provider
	catalog    Catalog
	collection string
	topK       int
}

// Config wires a Service.
type Config struct {
	Embedder   embedder.Embedder
	Index      vector.Provider
	Catalog    Catalog
	Collection string
	TopK       int
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Embedder == nil || cfg.Index == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("search needs an embedder, an index and a catalog")
	}
	if cfg.Collection == "" {
		cfg.Collection = "catalog_items"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Service{
		embedder:   cfg.Embedder,
		index:      cfg.Index,
		catalog:    cfg.Catalog,
		collection: cfg.Collection,
		topK:       cfg.TopK,
	}, nil
}

// SearchText embeds query into the shared image/text space and returns the
// closest products.
func (s *Service) SearchText(ctx context.Context, query string, k int) ([]Hit, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.nearest(ctx, vec, k)
}

// SearchImage returns the products whose images look closest to data.
func (s *Service) SearchImage(ctx context.Context, data []byte, mimeType string, k int) ([]Hit, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no image to search with")
	}
	vec, err := s.embedder.EmbedImage(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to embed image: %w", err)
	}
	return s.nearest(ctx, vec, k)
}

func (s *Service) nearest(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = s.topK
	}
	results, err := s.index.Search(ctx, s.collection, vec, k)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	// Vectors whose product has since left the catalog are skipped.
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		p, ok := products[r.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Product: p, Distance: r.Distance()})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

// Maps converts hits for session state.
func Maps(hits []Hit) []any {
	out := make([]any, len(hits))
	for i, h := range hits {
		out[i] = h.ToMap()
	}
	return out
}
