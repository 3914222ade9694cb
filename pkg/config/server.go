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

package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage backends for sessions and A2A tasks.
const (
	BackendInMemory = "inmemory"
	BackendSQL      = "sql"
)

// ServerConfig configures the A2A/HTTP server and the per-turn executor.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// URL is the public base URL advertised in the agent card.
	// Default: http://<host>:<port>
	URL string `yaml:"url,omitempty"`

	// AppName scopes sessions.
	AppName string `yaml:"app_name,omitempty"`

	// AgentName and Description appear in the agent card.
	AgentName   string `yaml:"agent_name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version,omitempty"`

	// ArtifactName names the streamed text response artifact.
	ArtifactName string `yaml:"artifact_name,omitempty"`

	// StatusMessage is the working status shown when a turn starts.
	StatusMessage string `yaml:"status_message,omitempty"`

	// DefaultUser is used when a message carries no user_id metadata.
	DefaultUser string `yaml:"default_user,omitempty"`

	// GRPCPort additionally serves A2A over gRPC when set.
	GRPCPort int `yaml:"grpc_port,omitempty"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// Tasks selects where A2A tasks are kept (inmemory or sql).
	Tasks TasksConfig `yaml:"tasks,omitempty"`
}

// TasksConfig selects the A2A task store.
type TasksConfig struct {
	Backend string `yaml:"backend,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.AppName == "" {
		c.AppName = "shopping_assistant"
	}
	if c.AgentName == "" {
		c.AgentName = "Shopping Assistant"
	}
	if c.Description == "" {
		c.Description = "Finds products, manages your cart, checks you out and handles orders, payments and returns."
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.ArtifactName == "" {
		c.ArtifactName = "response"
	}
	if c.StatusMessage == "" {
		c.StatusMessage = "Processing your shopping request..."
	}
	if c.DefaultUser == "" {
		c.DefaultUser = "a2a_user"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.URL == "" {
		host := c.Host
		if host == "0.0.0.0" || host == "" {
			host = "localhost"
		}
		c.URL = fmt.Sprintf("http://%s:%d", host, c.Port)
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Tasks.Backend == "" {
		c.Tasks.Backend = BackendInMemory
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.GRPCPort != 0 && (c.GRPCPort < 1 || c.GRPCPort > 65535 || c.GRPCPort == c.Port) {
		return fmt.Errorf("grpc_port %d is invalid", c.GRPCPort)
	}
	if err := validateBackend(c.Tasks.Backend); err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	return nil
}

// Address returns host:port for net.Listen.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionsConfig selects the session service.
type SessionsConfig struct {
	Backend string `yaml:"backend,omitempty"`
}

func (c *SessionsConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendInMemory
	}
}

func (c *SessionsConfig) Validate() error {
	return validateBackend(c.Backend)
}

func validateBackend(b string) error {
	switch b {
	case BackendInMemory, BackendSQL:
		return nil
	default:
		return fmt.Errorf("invalid backend %q (valid: inmemory, sql)", b)
	}
}

// AuthConfig enables JWT bearer authentication against a JWKS endpoint.
//
// Example:
//
//	auth:
//	  enabled: true
//	  jwks_url: https://issuer.example.com/.well-known/jwks.json
//	  issuer: https://issuer.example.com/
//	  audience: storefront
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	JWKSURL  string `yaml:"jwks_url,omitempty"`
	Issuer   string `yaml:"issuer,omitempty"`
	Audience string `yaml:"audience,omitempty"`

	// RefreshInterval is the minimum JWKS refresh period.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
}

func (c *AuthConfig) SetDefaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
}

func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" {
		return fmt.Errorf("jwks_url is required when auth is enabled")
	}
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required when auth is enabled")
	}
	if c.Audience == "" {
		return fmt.Errorf("audience is required when auth is enabled")
	}
	return nil
}

// MCPConfig exposes the product catalog as an MCP tool server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Path is the streamable HTTP mount point on the main server.
	Path string `yaml:"path,omitempty"`
}

func (c *MCPConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "/mcp"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
}
