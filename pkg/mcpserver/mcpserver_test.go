package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/search"
	"github.com/kadirpekel/storefront/pkg/shop"
)

type memCatalog map[string]*shop.Product

func (c memCatalog) GetProduct(_ context.Context, id string) (*shop.Product, error) {
	if p, ok := c[id]; ok {
		return p, nil
	}
	return nil, shop.ErrNotFound
}

func (c memCatalog) RandomProducts(_ context.Context, n int) ([]*shop.Product, error) {
	var out []*shop.Product
	for _, p := range c {
		if len(out) == n {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

type fixedSearch struct {
	hits  []search.Hit
	lastK int
}

func (f *fixedSearch) SearchText(_ context.Context, _ string, k int) ([]search.Hit, error) {
	f.lastK = k
	return f.hits, nil
}

var products = memCatalog{
	"p1": {ID: "p1", Name: "Running Shoe", PriceUSDUnits: 50},
	"p2": {ID: "p2", Name: "Wool Scarf", PriceUSDUnits: 20},
}

func connect(t *testing.T, cfg Config) *client.Client {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)

	c, err := client.NewInProcessClient(s)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	if res.IsError {
		return map[string]any{"error": text.Text}, true
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, false
}

func TestNew_RequiresCatalog(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestTools_Listed(t *testing.T) {
	c := connect(t, Config{Catalog: products})
	list, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tl := range list.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{"get_product", "list_products"}, names)

	c = connect(t, Config{Catalog: products, Search: &fixedSearch{}})
	list, err = c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Tools, 3)
}

func TestGetProduct(t *testing.T) {
	c := connect(t, Config{Catalog: products})

	out, isErr := callTool(t, c, "get_product", map[string]any{"id": "p2"})
	require.False(t, isErr)
	assert.Equal(t, "Wool Scarf", out["name"])
	assert.EqualValues(t, 20, out["price_usd_units"])

	out, isErr = callTool(t, c, "get_product", map[string]any{"id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "not found")
}

func TestListProducts(t *testing.T) {
	c := connect(t, Config{Catalog: products, MaxResults: 1})
	out, isErr := callTool(t, c, "list_products", map[string]any{"limit": 10})
	require.False(t, isErr)
	assert.EqualValues(t, 1, out["count"])
}

func TestSearchProducts(t *testing.T) {
	searcher := &fixedSearch{hits: []search.Hit{{Product: products["p1"], Distance: 0.1}}}
	c := connect(t, Config{Catalog: products, Search: searcher})

	out, isErr := callTool(t, c, "search_products", map[string]any{"query": "shoes", "top_k": 5})
	require.False(t, isErr)
	assert.EqualValues(t, 1, out["count"])
	assert.Equal(t, 5, searcher.lastK)

	_, isErr = callTool(t, c, "search_products", map[string]any{})
	assert.True(t, isErr)
}
