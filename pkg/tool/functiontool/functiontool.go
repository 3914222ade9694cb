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

// Package functiontool builds tools from typed Go functions. The argument
// struct's json and jsonschema tags define the schema shown to the model.
//
//	type AddToCartArgs struct {
//	    ProductID string `json:"product_id" jsonschema:"required,description=Catalog product id"`
//	    Quantity  int    `json:"quantity,omitempty" jsonschema:"description=How many,default=1"`
//	}
//
//	t, err := functiontool.New(
//	    functiontool.Config{Name: "add_to_cart", Description: "Add a product to the cart"},
//	    func(ctx tool.Context, args AddToCartArgs) (map[string]any, error) { ... },
//	)
package functiontool

import (
	"fmt"

	"github.com/kadirpekel/storefront/pkg/tool"
)

// Config names and describes a function tool.
type Config struct {
	Name        string
	Description string
}

// New wraps fn as a CallableTool.
func New[Args any](cfg Config, fn func(tool.Context, Args) (map[string]any, error)) (tool.CallableTool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if cfg.Description == "" {
		return nil, fmt.Errorf("tool %s: description is required", cfg.Name)
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: function is required", cfg.Name)
	}

	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", cfg.Name, err)
	}
	return &functionTool[Args]{cfg: cfg, fn: fn, schema: schema}, nil
}

// Must is New that panics; for static tool tables.
func Must[Args any](cfg Config, fn func(tool.Context, Args) (map[string]any, error)) tool.CallableTool {
	t, err := New(cfg, fn)
	if err != nil {
		panic(err)
	}
	return t
}

type functionTool[Args any] struct {
	cfg    Config
	fn     func(tool.Context, Args) (map[string]any, error)
	schema map[string]any
}

func (t *functionTool[Args]) Name() string           { return t.cfg.Name }
func (t *functionTool[Args]) Description() string    { return t.cfg.Description }
func (t *functionTool[Args]) Schema() map[string]any { return t.schema }

func (t *functionTool[Args]) Call(ctx tool.Context, args map[string]any) (map[string]any, error) {
	var typed Args
	if err := decodeArgs(args, &typed); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", t.cfg.Name, err)
	}
	return t.fn(ctx, typed)
}

var _ tool.CallableTool = (*functionTool[struct{}])(nil)
