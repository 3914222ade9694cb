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


package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/config/provider"
	"github.com/kadirpekel/storefront/pkg/embedder"
	"github.com/kadirpekel/storefront/pkg/httpclient"
	"github.com/kadirpekel/storefront/pkg/search"
	"github.com/kadirpekel/storefront/pkg/shop"
	"github.com/kadirpekel/storefront/pkg/vector"
)

// loadConfig reads the configuration from the selected source. A file
// source with no path yields the defaults plus environment overrides.
func (cli *CLI) loadConfig(ctx context.Context, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	typ, err := provider.ParseType(cli.ConfigSource)
	if err != nil {
		return nil, nil, err
	}

	if typ == provider.TypeFile {
		if err := config.LoadDotEnv(cli.Config); err != nil {
			slog.Warn("Failed to load .env files", "error", err)
		}
		cfg, loader, err := config.LoadFile(ctx, cli.Config, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		if cli.Config != "" {
			slog.Info("Loaded configuration", "path", cli.Config)
		} else {
			slog.Info("No config file given, using defaults")
		}
		return cfg, loader, nil
	}

	if err := config.LoadDotEnv(""); err != nil {
		slog.Warn("Failed to load .env files", "error", err)
	}
	if cli.Config == "" {
		return nil, nil, fmt.Errorf("--config must name the key to read from %s", typ)
	}
	cfg, loader, err := config.LoadFrom(ctx, provider.Options{
		Type:      typ,
		Path:      cli.Config,
		Endpoints: cli.ConfigEndpoints,
	}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config from %s: %w", typ, err)
	}
	slog.Info("Loaded configuration", "source", typ, "key", cli.Config)
	return cfg, loader, nil
}

// catalog wires the product store and, when requested, semantic search
// over it. Every command builds one and closes it on exit.
type catalog struct {
	store    *shop.Store
	embedder embedder.Embedder
	index    vector.Provider
	search   *search.Service
	indexer  *search.Indexer
}

func openCatalog(ctx context.Context, cfg *config.Config, pool *config.DBPool, withSearch bool) (*catalog, error) {
	db, err := pool.Get(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	store, err := shop.NewStore(ctx, db, cfg.Database.Dialect())
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	c := &catalog{store: store}
	if !withSearch {
		return c, nil
	}

	c.embedder, err = embedder.New(ctx, &cfg.Embedder)
	if err != nil {
		return nil, err
	}
	c.index, err = vector.NewProvider(cfg.Search.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	c.search, err = search.NewService(search.Config{
		Embedder:   c.embedder,
		Index:      c.index,
		Catalog:    store,
		Collection: cfg.Search.Vector.Collection,
		TopK:       cfg.Search.TopK,
	})
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}
	c.indexer, err = search.NewIndexer(search.IndexerConfig{
		Source:      store,
		Embedder:    c.embedder,
		Index:       c.index,
		Collection:  cfg.Search.Vector.Collection,
		Fetcher:     httpclient.New(httpclient.WithMaxRetries(2)),
		Concurrency: cfg.Search.IndexConcurrency,
	})
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}
	return c, nil
}

// reindex runs the indexer and logs its totals.
func (c *catalog) reindex(ctx context.Context) (*search.IndexStats, error) {
	if c.indexer == nil {
		return nil, fmt.Errorf("search is not configured")
	}
	stats, err := c.indexer.Index(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Catalog indexed",
		"indexed", stats.Indexed,
		"computed", stats.Computed,
		"failed", stats.Failed,
		"duration", stats.Duration)
	return stats, nil
}

// Close releases the vector index. The database belongs to the pool.
func (c *catalog) Close() error {
	if c == nil || c.index == nil {
		return nil
	}
	return c.index.Close()
}
