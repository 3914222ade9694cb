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


// Package mcpserver exposes the read-only side of the catalog as MCP tools
// so MCP clients can browse products without going through the agent.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/storefront/pkg/search"
	"github.com/kadirpekel/storefront/pkg/shop"
)

// Catalog is the product lookup the tools read from.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*shop.Product, error)
	RandomProducts(ctx context.Context, n int) ([]*shop.Product, error)
}

// Searcher runs semantic product search.
type Searcher interface {
	SearchText(ctx context.Context, query string, k int) ([]search.Hit, error)
}

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
	Catalog Catalog
	Search  Searcher

	// MaxResults caps top_k and limit arguments. Default: 50
	MaxResults int
}

const instructions = `Storefront catalog tools. Use search_products to find products by a
natural language description, get_product to fetch one product by id and
list_products to browse a random sample. Prices are whole US dollars.`

// New registers the catalog tools. Search is optional; without it
// search_products is not offered.
func New(cfg Config) (*server.MCPServer, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Name == "" {
		cfg.Name = "storefront"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}

	s := server.NewMCPServer(cfg.Name, cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	h := &handlers{cfg: cfg}

	if cfg.Search != nil {
		s.AddTool(mcp.NewTool("search_products",
			mcp.WithDescription("Find products matching a natural language description, closest first."),
			mcp.WithString("query", mcp.Required(), mcp.Description("What the shopper is looking for")),
			mcp.WithNumber("top_k", mcp.Description("How many products to return (default 3)")),
		), h.searchProducts)
	}
	s.AddTool(mcp.NewTool("get_product",
		mcp.WithDescription("Get one catalog product by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Product id")),
	), h.getProduct)
	s.AddTool(mcp.NewTool("list_products",
		mcp.WithDescription("List a random sample of catalog products."),
		mcp.WithNumber("limit", mcp.Description("How many products to return (default 20)")),
	), h.listProducts)
	return s, nil
}

// HTTPHandler serves s over streamable HTTP at path.
func HTTPHandler(s *server.MCPServer, path string) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(path),
		server.WithStateLess(true),
	)
}

// ServeStdio serves s on stdin and stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type handlers struct {
	cfg Config
}

func (h *handlers) searchProducts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k := h.clamp(req.GetInt("top_k", search.DefaultTopK))

	hits, err := h.cfg.Search.SearchText(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"products": search.Maps(hits), "count": len(hits)})
}

func (h *handlers) getProduct(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := h.cfg.Catalog.GetProduct(ctx, id)
	if errors.Is(err, shop.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("product %s not found", id)), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(p.ToMap())
}

func (h *handlers) listProducts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := h.clamp(req.GetInt("limit", 20))
	products, err := h.cfg.Catalog.RandomProducts(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(products))
	for i, p := range products {
		out[i] = p.ToMap()
	}
	return jsonResult(map[string]any{"products": out, "count": len(out)})
}

func (h *handlers) clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > h.cfg.MaxResults {
		return h.cfg.MaxResults
	}
	return n
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
