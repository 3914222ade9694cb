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

	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/mcpserver"
)

// MCPCmd serves the catalog tools to a local MCP client over stdio.
type MCPCmd struct {
	NoSearch bool `name:"no-search" help:"Expose only get_product and list_products."`
}

func (c *MCPCmd) Run(cli *CLI) error {
	ctx := context.Background()
	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	pool := config.NewDBPool()
	defer pool.Close()
	cat, err := openCatalog(ctx, cfg, pool, !c.NoSearch)
	if err != nil {
		return err
	}
	defer cat.Close()

	mcfg := mcpserver.Config{
		Name:    appName,
		Version: buildVersion(),
		Catalog: cat.store,
	}
	if cat.search != nil {
		mcfg.Search = cat.search
	}
	ms, err := mcpserver.New(mcfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return mcpserver.ServeStdio(ms)
}
