package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/config"
)

func familyNames(t *testing.T, m *Metrics) []string {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestMetrics_Record(t *testing.T) {
	m, err := NewMetrics("shop")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTurn(ctx, OutcomeCompleted, 120*time.Millisecond)
	m.RecordArtifact(ctx, "cart", nil)
	m.RecordArtifact(ctx, "order", errors.New("queue closed"))
	m.RecordToolStatus(ctx, "add_to_cart")
	m.RecordToolCall(ctx, "add_to_cart", 5*time.Millisecond, nil)

	names := familyNames(t, m)
	assert.True(t, hasPrefix(names, "shop_turns"))
	assert.True(t, hasPrefix(names, "shop_artifacts_sent"))
	assert.True(t, hasPrefix(names, "shop_artifact_failures"))
	assert.True(t, hasPrefix(names, "shop_tool_calls"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordTurn(ctx, OutcomeFailed, time.Second)
		m.RecordArtifact(ctx, "cart", nil)
		m.RecordToolStatus(ctx, "get_cart")
		m.RecordToolCall(ctx, "get_cart", time.Millisecond, nil)
		m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
	})
	assert.NoError(t, m.Shutdown(ctx))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	m, err := NewMetrics("shop")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(nil, m))
	r.Get("/api/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/p1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "shop_http_requests")
	assert.Contains(t, body, `route="/api/products/{id}"`)
	assert.NotContains(t, body, `route="/api/products/p1"`)
}

func TestNewManager_Disabled(t *testing.T) {
	cfg := config.ObservabilityConfig{}
	cfg.SetDefaults()

	m, err := NewManager(context.Background(), cfg, "test")
	require.NoError(t, err)
	assert.Nil(t, m.Metrics())

	_, span := m.Tracer("test").Start(context.Background(), "span")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestNewManager_StdoutTracing(t *testing.T) {
	cfg := config.ObservabilityConfig{}
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	cfg.Metrics.Enabled = true
	cfg.SetDefaults()

	m, err := NewManager(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, m.Metrics())

	_, span := m.Tracer("test").Start(context.Background(), SpanTurn)
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, m.Shutdown(context.Background()))
}
