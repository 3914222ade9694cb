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

// Package config loads the storefront configuration.
//
// Configuration is a YAML document read from a Provider (file, Consul,
// etcd or ZooKeeper). ${VAR} and ${VAR:-default} references are expanded
// before decoding. Every section has defaults, so an empty document (or
// no document at all) yields a runnable configuration driven by the
// environment variables listed in ApplyEnv.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server,omitempty"`
	Database      DatabaseConfig      `yaml:"database,omitempty"`
	Sessions      SessionsConfig      `yaml:"sessions,omitempty"`
	LLM           LLMConfig           `yaml:"llm,omitempty"`
	Embedder      EmbedderConfig      `yaml:"embedder,omitempty"`
	Search        SearchConfig        `yaml:"search,omitempty"`
	Upload        UploadConfig        `yaml:"upload,omitempty"`
	Auth          AuthConfig          `yaml:"auth,omitempty"`
	MCP           MCPConfig           `yaml:"mcp,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
	Logger        LoggerConfig        `yaml:"logger,omitempty"`
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Sessions.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Search.SetDefaults()
	c.Upload.SetDefaults()
	c.Auth.SetDefaults()
	c.MCP.SetDefaults()
	c.Observability.SetDefaults()
	c.Logger.SetDefaults()
}

// Validate checks every section and prefixes errors with the section name.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"database", c.Database.Validate},
		{"sessions", c.Sessions.Validate},
		{"llm", c.LLM.Validate},
		{"embedder", c.Embedder.Validate},
		{"search", c.Search.Validate},
		{"upload", c.Upload.Validate},
		{"auth", c.Auth.Validate},
		{"observability", c.Observability.Validate},
		{"logger", c.Logger.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}

// Default returns a configuration built from the environment only.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.SetDefaults()
	return cfg
}

// ApplyEnv fills fields the document left empty from well-known
// environment variables:
//
//	GOOGLE_API_KEY     llm.api_key, embedder.api_key
//	GEMINI_MODEL       llm.model
//	PROJECT_ID         llm.project, embedder.project
//	REGION             llm.location, embedder.location
//	DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD
//	                   database (switches the driver to postgres)
//	API_TOP_K_MAX      search.api_top_k_max
//	MAX_UPLOAD_MB      upload.max_mb
func (c *Config) ApplyEnv() {
	setString(&c.LLM.APIKey, "GOOGLE_API_KEY")
	setString(&c.Embedder.APIKey, "GOOGLE_API_KEY")
	setString(&c.LLM.Model, "GEMINI_MODEL")
	setString(&c.LLM.Project, "PROJECT_ID")
	setString(&c.Embedder.Project, "PROJECT_ID")
	setString(&c.LLM.Location, "REGION")
	setString(&c.Embedder.Location, "REGION")

	c.Database.Driver = normalizeDriver(c.Database.Driver)
	if c.Database.Driver == "" && os.Getenv("DB_HOST") != "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Driver == DriverPostgres || c.Database.Driver == DriverMySQL {
		setString(&c.Database.Host, "DB_HOST")
		setInt(&c.Database.Port, "DB_PORT")
		setString(&c.Database.Database, "DB_NAME")
		setString(&c.Database.Username, "DB_USER")
		setString(&c.Database.Password, "DB_PASSWORD")
	}

	setInt(&c.Search.APITopKMax, "API_TOP_K_MAX")
	setInt(&c.Upload.MaxMB, "MAX_UPLOAD_MB")
}

func setString(dst *string, env string) {
	if *dst != "" {
		return
	}
	*dst = os.Getenv(env)
}

func setInt(dst *int, env string) {
	if *dst != 0 {
		return
	}
	if n, err := strconv.Atoi(os.Getenv(env)); err == nil {
		*dst = n
	}
}
