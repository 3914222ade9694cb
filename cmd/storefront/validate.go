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
	"os"

	"gopkg.in/yaml.v3"
)

// ValidateCmd loads, defaults and validates the configuration.
type ValidateCmd struct {
	PrintConfig bool `name:"print-config" short:"p" help:"Print the effective configuration."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx := context.Background()
	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	if c.PrintConfig {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(redacted(*cfg)); err != nil {
			return fmt.Errorf("failed to print config: %w", err)
		}
		return enc.Close()
	}
	fmt.Println("Configuration is valid")
	return nil
}
