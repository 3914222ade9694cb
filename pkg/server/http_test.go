package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/auth"
	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/model/modeltest"
	"github.com/kadirpekel/storefront/pkg/observability"
	"github.com/kadirpekel/storefront/pkg/shop"
)

type tokenValidator map[string]*auth.Claims

func (v tokenValidator) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("unknown token")
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg
}

func newCatalog(t *testing.T) *shop.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := shop.NewStore(context.Background(), db, "sqlite3")
	require.NoError(t, err)
	_, err = store.ImportCatalog(context.Background(), []*shop.Product{
		{ID: "p1", Name: "Running Shoe", Picture: "/p1.jpg", PriceUSDUnits: 50},
		{ID: "p2", Name: "Wool Scarf", ProductImageURL: "https://img/p2.png", PriceUSDUnits: 20},
		{ID: "p3", Name: "Coffee Mug", PriceUSDUnits: 8},
	})
	require.NoError(t, err)
	return store
}

func newTestServer(t *testing.T, cfg *config.Config, llm *modeltest.LLM, opts ...Option) *httptest.Server {
	t.Helper()
	exec, _ := newExecutor(t, llm)
	metrics, err := observability.NewMetrics("storefront_test")
	require.NoError(t, err)
	opts = append([]Option{WithCatalog(newCatalog(t)), WithObservability(nil, metrics)}, opts...)
	ts := httptest.NewServer(New(cfg, exec, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHTTP_AgentCard(t *testing.T) {
	ts := newTestServer(t, newTestConfig(), modeltest.New())

	var card map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/.well-known/agent-card.json", &card))
	assert.Equal(t, "Shopping Assistant", card["name"])
	assert.Equal(t, true, card["capabilities"].(map[string]any)["streaming"])
	assert.Len(t, card["skills"], 5)
}

func TestHTTP_Products(t *testing.T) {
	cfg := newTestConfig()
	cfg.Search.APITopKMax = 2
	ts := newTestServer(t, cfg, modeltest.New())

	var body struct {
		Products []productJSON `json:"products"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/products", &body))
	assert.Len(t, body.Products, 2)

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/products?limit=1", &body))
	assert.Len(t, body.Products, 1)

	var errBody map[string]string
	require.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/products?limit=zero", &errBody))
	assert.NotEmpty(t, errBody["error"])
}

func TestHTTP_ProductByID(t *testing.T) {
	ts := newTestServer(t, newTestConfig(), modeltest.New())

	var p productJSON
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/products/p2", &p))
	assert.Equal(t, "Wool Scarf", p.Name)
	assert.Equal(t, "https://img/p2.png", p.ProductImageURL)
	assert.Equal(t, 20.0, p.Price)

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/products/p1", &p))
	assert.Equal(t, "/p1.jpg", p.ProductImageURL)

	var errBody map[string]string
	require.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/products/nope", &errBody))
	assert.Equal(t, "Product with ID 'nope' not found", errBody["error"])
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, newTestConfig(), modeltest.New())

	var health map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_CORSPreflight(t *testing.T) {
	ts := newTestServer(t, newTestConfig(), modeltest.New())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTP_AuthProtectsJSONRPC(t *testing.T) {
	cfg := newTestConfig()
	ts := newTestServer(t, cfg, modeltest.New(), WithAuthValidator(tokenValidator{
		"good": {Subject: "alice"},
	}))

	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/.well-known/agent-card.json", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/products/p1", nil))
}

func TestHTTP_MessageSend(t *testing.T) {
	ts := newTestServer(t, newTestConfig(), modeltest.New(modeltest.Text("Hello! ", "How can I help?")))

	body := `{
  "jsonrpc": "2.0",
  "id": 1,
  "method": "message/send",
  "params": {
    "message": {
      "kind": "message",
      "messageId": "m1",
      "role": "user",
      "parts": [{"kind": "text", "text": "hi"}]
    }
  }
}`
	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rpc struct {
		Result map[string]any `json:"result"`
		Error  map[string]any `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	require.Nil(t, rpc.Error)
	status, ok := rpc.Result["status"].(map[string]any)
	require.True(t, ok, "result: %v", rpc.Result)
	assert.Equal(t, "completed", status["state"])
}
