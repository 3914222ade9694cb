package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/shop"
)

func TestLogSettings_Precedence(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	t.Setenv(LogFormatEnvVar, "")
	t.Setenv(LogFileEnvVar, "")

	s := settingsFromCLI("", "", "")
	assert.Equal(t, "warn", s.Level)
	assert.Empty(t, s.Format)

	s = settingsFromCLI("debug", "", "")
	assert.Equal(t, "debug", s.Level)

	s = settingsFromCLI("", "", "").withConfig(&config.LoggerConfig{Level: "error", Format: "json", File: "x.log"})
	assert.Equal(t, "warn", s.Level, "env wins over config")
	assert.Equal(t, "json", s.Format)
	assert.Equal(t, "x.log", s.File)
}

func TestLogSettings_InitRejectsBadLevel(t *testing.T) {
	_, err := logSettings{Level: "loud"}.init()
	require.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := config.Config{}
	cfg.LLM.APIKey = "key"
	cfg.Database.Password = "pw"

	out := redacted(cfg)
	assert.Equal(t, redactedValue, out.LLM.APIKey)
	assert.Equal(t, redactedValue, out.Database.Password)
	assert.Empty(t, out.Embedder.APIKey)
	assert.Equal(t, "key", cfg.LLM.APIKey, "input is not modified")
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := "server:\n  port: 9099\ndatabase:\n  driver: sqlite\n  database: " + filepath.Join(dir, "shop.db") + "\n"
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	cli := &CLI{Config: writeConfig(t), ConfigSource: "file"}
	cfg, loader, err := cli.loadConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loader)
	defer loader.Close()
	assert.Equal(t, 9099, cfg.Server.Port)
}

func TestLoadConfig_RemoteNeedsKey(t *testing.T) {
	cli := &CLI{ConfigSource: "consul"}
	_, _, err := cli.loadConfig(context.Background())
	require.Error(t, err)
}

func TestLoadConfig_UnknownSource(t *testing.T) {
	cli := &CLI{ConfigSource: "s3"}
	_, _, err := cli.loadConfig(context.Background())
	require.Error(t, err)
}

func TestOpenCatalog_WithoutSearch(t *testing.T) {
	ctx := context.Background()
	cli := &CLI{Config: writeConfig(t), ConfigSource: "file"}
	cfg, loader, err := cli.loadConfig(ctx)
	require.NoError(t, err)
	defer loader.Close()

	pool := config.NewDBPool()
	defer pool.Close()
	cat, err := openCatalog(ctx, cfg, pool, false)
	require.NoError(t, err)
	defer cat.Close()

	assert.Nil(t, cat.search)
	_, err = cat.reindex(ctx)
	require.Error(t, err)

	n, err := cat.store.ImportCatalog(ctx, []*shop.Product{{ID: "p1", Name: "Lamp", PriceUSDUnits: 20}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
