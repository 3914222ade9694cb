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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/shop"
)

// SeedCmd imports a catalog file into the database.
type SeedCmd struct {
	File  string `arg:"" help:"Catalog file (.json or .xlsx)." type:"existingfile"`
	Index bool   `help:"Embed the imported products afterwards."`
}

func (c *SeedCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	products, err := shop.ReadCatalogFile(c.File)
	if err != nil {
		return err
	}

	pool := config.NewDBPool()
	defer pool.Close()
	cat, err := openCatalog(ctx, cfg, pool, c.Index)
	if err != nil {
		return err
	}
	defer cat.Close()

	n, err := cat.store.ImportCatalog(ctx, products)
	if err != nil {
		return fmt.Errorf("failed to import catalog: %w", err)
	}
	slog.Info("Catalog imported", "file", c.File, "products", n)
	fmt.Printf("Imported %d products from %s\n", n, c.File)

	if !c.Index {
		return nil
	}
	stats, err := cat.reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d products (%d embedded, %d failed)\n", stats.Indexed, stats.Computed, stats.Failed)
	return nil
}

// IndexCmd embeds every catalog product into the vector index.
type IndexCmd struct{}

func (c *IndexCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	pool := config.NewDBPool()
	defer pool.Close()
	cat, err := openCatalog(ctx, cfg, pool, true)
	if err != nil {
		return err
	}
	defer cat.Close()

	stats, err := cat.reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d products (%d embedded, %d failed) in %s\n",
		stats.Indexed, stats.Computed, stats.Failed, stats.Duration.Round(time.Millisecond))
	return nil
}
