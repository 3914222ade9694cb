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


package search

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/storefront/pkg/embedder"
	"github.com/kadirpekel/storefront/pkg/shop"
	"github.com/kadirpekel/storefront/pkg/vector"
)

// ProductSource lists catalog rows and stores computed embeddings.
type ProductSource interface {
	ListProducts(ctx context.Context, offset, limit int) ([]*shop.Product, error)
	SetImageEmbedding(ctx context.Context, id string, vec []float32) error
}

// ImageFetcher downloads a product image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// IndexerConfig wires an Indexer.
type IndexerConfig struct {
	Source     ProductSource
	Embedder   embedder.Embedder
	Index      vector.Provider
	Collection string

	// Fetcher downloads images for products without a stored embedding.
	// When nil, or when the download fails, the product's text is embedded
	// instead.
	Fetcher ImageFetcher

	Concurrency int
	PageSize    int
}

// Indexer loads the catalog into the vector index.
type Indexer struct {
	cfg IndexerConfig
}

// IndexStats summarises one indexing run.
type IndexStats struct {
	Indexed  int64
	Computed int64
	Failed   int64
	Duration time.Duration
}

func NewIndexer(cfg IndexerConfig) (*Indexer, error) {
	if cfg.Source == nil || cfg.Embedder == nil || cfg.Index == nil {
		return nil, fmt.Errorf("indexer needs a source, an embedder and an index")
	}
	if cfg.Collection == "" {
		cfg.Collection = "catalog_items"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	return &Indexer{cfg: cfg}, nil
}

// Index upserts every catalog product. A product that cannot be embedded is
// logged and counted; only context cancellation or an index failure stops
// the run.
func (ix *Indexer) Index(ctx context.Context) (*IndexStats, error) {
	start := time.Now()
	if err := ix.cfg.Index.CreateCollection(ctx, ix.cfg.Collection, ix.cfg.Embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to prepare collection: %w", err)
	}

	var indexed, computed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)

	for offset := 0; ; offset += ix.cfg.PageSize {
		page, err := ix.cfg.Source.ListProducts(gctx, offset, ix.cfg.PageSize)
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("failed to list products: %w", err)
		}
		for _, p := range page {
			g.Go(func() error {
				vec, fresh, err := ix.embedding(gctx, p)
				if err != nil {
					failed.Add(1)
					slog.Warn("Failed to embed product", "product", p.ID, "error", err)
					return nil
				}
				if fresh {
					computed.Add(1)
					if err := ix.cfg.Source.SetImageEmbedding(gctx, p.ID, vec); err != nil {
						slog.Warn("Failed to store embedding", "product", p.ID, "error", err)
					}
				}
				meta := map[string]any{"name": p.Name, "price_usd_units": p.PriceUSDUnits}
				if err := ix.cfg.Index.Upsert(gctx, ix.cfg.Collection, p.ID, vec, meta); err != nil {
					return fmt.Errorf("failed to index %s: %w", p.ID, err)
				}
				indexed.Add(1)
				return nil
			})
		}
		if len(page) < ix.cfg.PageSize {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &IndexStats{
		Indexed:  indexed.Load(),
		Computed: computed.Load(),
		Failed:   failed.Load(),
		Duration: time.Since(start),
	}
	slog.Info("Indexed catalog",
		"collection", ix.cfg.Collection,
		"provider", ix.cfg.Index.Name(),
		"indexed", stats.Indexed,
		"computed", stats.Computed,
		"failed", stats.Failed,
		"duration", stats.Duration)
	return stats, nil
}

// embedding returns the stored vector or computes one. fresh reports a newly
// computed vector.
func (ix *Indexer) embedding(ctx context.Context, p *shop.Product) (vec []float32, fresh bool, err error) {
	dim := ix.cfg.Embedder.Dimension()
	if len(p.ImageEmbedding) > 0 && (dim == 0 || len(p.ImageEmbedding) == dim) {
		return p.ImageEmbedding, false, nil
	}

	if url := p.ImageURL(); url != "" && ix.cfg.Fetcher != nil {
		data, contentType, ferr := ix.cfg.Fetcher.Fetch(ctx, url)
		if ferr == nil {
			vec, err = ix.cfg.Embedder.EmbedImage(ctx, data, imageMimeType(contentType, url))
			if err == nil {
				return vec, true, nil
			}
		}
		slog.Debug("Falling back to text embedding", "product", p.ID, "fetch_error", ferr, "embed_error", err)
	}

	text := p.Name
	if p.Description != "" {
		text += ". " + p.Description
	}
	vec, err = ix.cfg.Embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func imageMimeType(contentType, url string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if mt := mime.TypeByExtension(path.Ext(url)); mt != "" {
		return mt
	}
	return "image/jpeg"
}
