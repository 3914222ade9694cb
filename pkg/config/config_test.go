package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_API_KEY", "GEMINI_MODEL", "PROJECT_ID", "REGION",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"API_TOP_K_MAX", "MAX_UPLOAD_MB",
	} {
		t.Setenv(k, "")
	}
}

func TestParse_EmptyDocumentUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "response", cfg.Server.ArtifactName)
	assert.Equal(t, "Processing your shopping request...", cfg.Server.StatusMessage)
	assert.Equal(t, "a2a_user", cfg.Server.DefaultUser)
	assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, BackendInMemory, cfg.Sessions.Backend)
	assert.Equal(t, 1408, cfg.Embedder.Dimension)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, 50, cfg.Search.APITopKMax)
	assert.Equal(t, VectorChromem, cfg.Search.Vector.Provider)
	assert.Equal(t, 10, cfg.Upload.MaxMB)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/webp"}, cfg.Upload.AllowedMimeTypes)
	assert.True(t, cfg.LLM.StreamingEnabled())
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHOP_PORT", "9090")
	t.Setenv("SHOP_DB", "shop")

	doc := `
server:
  port: ${SHOP_PORT}
  shutdown_timeout: 3s
database:
  driver: postgresql
  host: ${PGHOST_UNSET:-db.internal}
  database: $SHOP_DB
upload:
  allowed_mime_types: image/png,image/gif
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "shop", cfg.Database.Database)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"image/png", "image/gif"}, cfg.Upload.AllowedMimeTypes)
}

func TestParse_ZeroConfigDatabaseFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "catalog")
	t.Setenv("DB_USER", "shop")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("MAX_UPLOAD_MB", "4")

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://shop:s3cret@pg:6543/catalog?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 4*1024*1024, cfg.Upload.MaxBytes())
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	_, err := Parse([]byte("server:\n  prot: 80\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server"},
		{"bad sessions backend", func(c *Config) { c.Sessions.Backend = "redis" }, "sessions"},
		{"bad vector provider", func(c *Config) { c.Search.Vector.Provider = "faiss" }, "search"},
		{"pinecone without key", func(c *Config) { c.Search.Vector.Provider = VectorPinecone }, "pinecone"},
		{"auth without jwks", func(c *Config) { c.Auth.Enabled = true }, "jwks_url"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger"},
		{"bad exporter", func(c *Config) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.Exporter = "zipkin"
		}, "observability"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	mysql := DatabaseConfig{Driver: "mariadb", Database: "shop", Username: "u", Password: "p"}
	mysql.SetDefaults()
	assert.Equal(t, "u:p@tcp(localhost:3306)/shop?parseTime=true&multiStatements=false", mysql.DSN())
	assert.Equal(t, "mysql", mysql.DriverName())

	lite := DatabaseConfig{}
	lite.SetDefaults()
	assert.Equal(t, "sqlite3", lite.DriverName())
	assert.Equal(t, "file:storefront.db?_foreign_keys=on", lite.DSN())

	mem := DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	mem.SetDefaults()
	assert.Equal(t, ":memory:", mem.DSN())
}

func TestDBPool_SharesHandlePerDSN(t *testing.T) {
	pool := NewDBPool()
	defer pool.Close()

	cfg := &DatabaseConfig{Driver: DriverSQLite, Database: ":memory:"}
	cfg.SetDefaults()

	a, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)
	b, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = a.Exec("CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	_, err = b.Exec("INSERT INTO t VALUES (1)")
	require.NoError(t, err)
}

func TestLoader_WatchReloadsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0o644))

	reloaded := make(chan *Config, 1)
	cfg, loader, err := LoadFile(context.Background(), path, WithOnChange(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}))
	require.NoError(t, err)
	defer loader.Close()
	assert.Equal(t, "info", cfg.Logger.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loader.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: debug\n"), 0o644))

	select {
	case c := <-reloaded:
		assert.Equal(t, "debug", c.Logger.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SF_A=from_file\nSF_B=from_file\n"), 0o644))
	t.Setenv("SF_A", "from_process")
	t.Setenv("SF_B", "")
	os.Unsetenv("SF_B")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "storefront.yaml")))
	assert.Equal(t, "from_process", os.Getenv("SF_A"))
	assert.Equal(t, "from_file", os.Getenv("SF_B"))
}
