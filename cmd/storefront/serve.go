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

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/agent/llmagent"
	"github.com/kadirpekel/storefront/pkg/auth"
	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/logger"
	"github.com/kadirpekel/storefront/pkg/mcpserver"
	"github.com/kadirpekel/storefront/pkg/model/gemini"
	"github.com/kadirpekel/storefront/pkg/observability"
	"github.com/kadirpekel/storefront/pkg/runner"
	"github.com/kadirpekel/storefront/pkg/server"
	"github.com/kadirpekel/storefront/pkg/session"
	"github.com/kadirpekel/storefront/pkg/shoptool"
	"github.com/kadirpekel/storefront/pkg/task"
	"github.com/kadirpekel/storefront/pkg/tool"
)

const (
	appName   = "storefront"
	agentName = "shopping_assistant"
)

// ServeCmd starts the A2A server.
type ServeCmd struct {
	Watch   bool `help:"Watch the config source and apply log level changes." default:"true" negatable:""`
	NoIndex bool `name:"no-index" help:"Skip indexing on start even when search.index_on_start is set."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := cli.loadConfig(ctx, config.WithOnChange(cli.onConfigChange))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	cleanup, err := initLoggerFromConfig(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	obs, err := observability.NewManager(ctx, cfg.Observability, buildVersion())
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()
	metrics := obs.Metrics()

	// Sessions, tasks and the catalog share one pool so SQLite sees a
	// single writer.
	pool := config.NewDBPool()
	defer pool.Close()

	cat, err := openCatalog(ctx, cfg, pool, true)
	if err != nil {
		return err
	}
	defer cat.Close()

	if cfg.Search.IndexOnStart && !c.NoIndex {
		go func() {
			if _, err := cat.reindex(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Catalog indexing failed", "error", err)
			}
		}()
	}

	shopper, err := newShoppingAgent(ctx, cfg, cat, metrics)
	if err != nil {
		return err
	}

	sessions, err := session.NewService(ctx, cfg, pool)
	if err != nil {
		return fmt.Errorf("failed to create session service: %w", err)
	}
	r, err := runner.New(runner.Config{
		AppName:        cfg.Server.AppName,
		Agent:          shopper,
		SessionService: sessions,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	exec := server.NewExecutor(server.ExecutorConfig{
		Runner:           r,
		RunConfig:        agent.RunConfig{Streaming: cfg.LLM.StreamingEnabled()},
		ArtifactName:     cfg.Server.ArtifactName,
		StatusMessage:    cfg.Server.StatusMessage,
		DefaultUserID:    cfg.Server.DefaultUser,
		MaxUploadBytes:   cfg.Upload.MaxBytes(),
		AllowedMimeTypes: cfg.Upload.AllowedMimeTypes,
		Metrics:          metrics,
		Tracer:           obs.Tracer("storefront/executor"),
	})

	opts := []server.Option{
		server.WithCatalog(cat.store),
		server.WithObservability(obs.Tracer("storefront/http"), metrics),
	}

	taskStore, err := task.NewStore(ctx, cfg, pool)
	if err != nil {
		return fmt.Errorf("failed to create task store: %w", err)
	}
	if taskStore != nil {
		opts = append(opts, server.WithTaskStore(taskStore))
	}

	if cfg.Auth.Enabled {
		validator, err := auth.NewValidatorFromConfig(&cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to create auth validator: %w", err)
		}
		defer validator.Close()
		opts = append(opts, server.WithAuthValidator(validator))
	}

	if cfg.MCP.Enabled {
		ms, err := mcpserver.New(mcpserver.Config{
			Name:    appName,
			Version: buildVersion(),
			Catalog: cat.store,
			Search:  cat.search,
		})
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		opts = append(opts, server.WithMCPHandler(mcpserver.HTTPHandler(ms, cfg.MCP.Path)))
	}

	srv := server.New(cfg, exec, opts...)
	printReady(cfg)
	return srv.Start(ctx)
}

// newShoppingAgent builds the tool-calling agent behind the executor.
func newShoppingAgent(ctx context.Context, cfg *config.Config, cat *catalog, metrics *observability.Metrics) (agent.Agent, error) {
	llm, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.LLM.APIKey,
		Project:     cfg.LLM.Project,
		Location:    cfg.LLM.Location,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	callables, err := shoptool.Tools(shoptool.Config{
		Store:  cat.store,
		Search: cat.search,
		TopK:   cfg.Search.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build tools: %w", err)
	}
	tools := make([]tool.Tool, 0, len(callables))
	for _, t := range callables {
		tools = append(tools, t)
	}

	counter, err := llmagent.NewTiktokenCounter(cfg.LLM.Model)
	if err != nil {
		slog.Warn("Token counting disabled", "error", err)
	}

	return llmagent.New(llmagent.Config{
		Name:                agentName,
		Description:         cfg.Server.Description,
		Model:               llm,
		InstructionProvider: shoptool.InstructionProvider,
		Tools:               tools,
		MaxIterations:       cfg.LLM.MaxIterations,
		HistoryTokens:       cfg.LLM.HistoryTokens,
		TokenCounter:        counter,
		OnToolCall: func(name string, elapsed time.Duration, err error) {
			metrics.RecordToolCall(ctx, name, elapsed, err)
		},
	})
}

// onConfigChange applies what can change without a restart. Only the log
// level is live; everything else is logged and waits for the next start.
func (cli *CLI) onConfigChange(cfg *config.Config) {
	if settingsFromCLI(cli.LogLevel, "", "").Level != "" {
		return
	}
	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		slog.Warn("Ignoring reloaded log level", "error", err)
		return
	}
	logger.SetLevel(level)
	slog.Info("Log level updated", "level", cfg.Logger.Level)
}

func printReady(cfg *config.Config) {
	base := cfg.Server.URL
	fmt.Printf("Shopping assistant ready\n")
	fmt.Printf("   A2A JSON-RPC: %s/\n", base)
	fmt.Printf("   Agent Card:   %s/.well-known/agent-card.json\n", base)
	fmt.Printf("   Products:     %s/api/products\n", base)
	fmt.Printf("   Health:       %s/healthz\n", base)
	if cfg.Server.GRPCPort != 0 {
		fmt.Printf("   gRPC:         %s:%d\n", cfg.Server.Host, cfg.Server.GRPCPort)
	}
	if cfg.MCP.Enabled {
		fmt.Printf("   MCP:          %s%s\n", base, cfg.MCP.Path)
	}
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:      %s/metrics\n", base)
	}
	fmt.Printf("   Sessions:     %s\n", cfg.Sessions.Backend)
	fmt.Printf("   Tasks:        %s\n", cfg.Server.Tasks.Backend)
	fmt.Println("\nPress Ctrl+C to stop")
}
