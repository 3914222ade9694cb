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


// Command storefront runs the shopping assistant.
//
// Usage:
//
//	storefront serve --config storefront.yaml
//	storefront seed products.xlsx --index
//	storefront index
//	storefront mcp
//	storefront validate --config storefront.yaml
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"
	"golang.org/x/term"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the A2A server."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration."`
	Seed     SeedCmd     `cmd:"" help:"Import a product catalog (JSON or XLSX)."`
	Index    IndexCmd    `cmd:"" help:"Embed catalog images into the vector index."`
	MCP      MCPCmd      `cmd:"" name:"mcp" help:"Serve the catalog tools over MCP on stdio."`

	Config          string   `short:"c" help:"Config file path, or key when --config-source is remote." env:"STOREFRONT_CONFIG"`
	ConfigSource    string   `help:"Config source (file, consul, etcd, zookeeper)." default:"file" env:"STOREFRONT_CONFIG_SOURCE"`
	ConfigEndpoints []string `help:"Remote config store endpoints." env:"STOREFRONT_CONFIG_ENDPOINTS"`

	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("storefront version %s\n", buildVersion())
	return nil
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

func printBanner() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	const green = "\033[38;2;16;185;129m"
	const reset = "\033[0m"
	fmt.Printf("%s\n  storefront %s%s\n\n", green, buildVersion(), reset)
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("storefront"),
		kong.Description("Conversational shopping assistant over A2A"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if kctx.Command() == "serve" {
		printBanner()
	}

	err = kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
