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


// Package shoptool exposes the store to the model as function tools.
//
// Tools keep session state current as they go: search results land in
// current_results, the cart in cart, and so on. Those writes are what the
// executor watches to decide which artifacts to stream.
package shoptool

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/kadirpekel/storefront/pkg/artifact"
	"github.com/kadirpekel/storefront/pkg/search"
	"github.com/kadirpekel/storefront/pkg/shop"
	"github.com/kadirpekel/storefront/pkg/tool"
)

// State keys written by tools besides the artifact categories.
const (
	KeyShippingAddress = "shipping_address"
	KeyImageBytes      = "current_image_bytes"
	KeyImageMimeType   = "current_image_mime_type"
)

// Searcher finds products by text or image.
type Searcher interface {
	SearchText(ctx context.Context, query string, k int) ([]search.Hit, error)
	SearchImage(ctx context.Context, data []byte, mimeType string, k int) ([]search.Hit, error)
}

// Config wires the tools to the store and search.
type Config struct {
	Store  *shop.Store
	Search Searcher
	// TopK is the number of products a search returns.
	TopK int
}

type toolset struct {
	store  *shop.Store
	search Searcher
	topK   int
}

// Tools returns every shopping tool.
func Tools(cfg Config) ([]tool.CallableTool, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("shop tools need a store")
	}
	if cfg.Search == nil {
		return nil, fmt.Errorf("shop tools need a searcher")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = search.DefaultTopK
	}
	ts := &toolset{store: cfg.Store, search: cfg.Search, topK: cfg.TopK}

	var tools []tool.CallableTool
	for _, group := range [][]tool.CallableTool{
		ts.discoveryTools(),
		ts.cartTools(),
		ts.checkoutTools(),
		ts.paymentTools(),
		ts.serviceTools(),
	} {
		tools = append(tools, group...)
	}
	return tools, nil
}

// refreshCart reloads the session cart into state and returns its lines.
func (ts *toolset) refreshCart(ctx tool.Context) ([]any, error) {
	items, err := ts.store.CartItems(ctx, ctx.SessionID())
	if err != nil {
		return nil, err
	}
	lines := make([]any, len(items))
	for i, it := range items {
		lines[i] = it.ToMap()
	}
	if err := ctx.State().Set(artifact.KeyCart, lines); err != nil {
		return nil, fmt.Errorf("failed to update cart state: %w", err)
	}
	return lines, nil
}

// stateList reads a list from state. Lists decoded from a persisted session
// arrive as []any; lists written in-process may be []map[string]any.
func stateList(ctx tool.Context, key string) []map[string]any {
	v, err := ctx.State().Get(key)
	if err != nil || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func stateString(ctx tool.Context, key string) string {
	v, err := ctx.State().Get(key)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// stateBytes reads raw bytes that may have been persisted as base64 text.
func stateBytes(ctx tool.Context, key string) ([]byte, error) {
	v, err := ctx.State().Get(key)
	if err != nil || v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		data, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return nil, fmt.Errorf("stored image is not valid base64: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("stored image has unexpected type %T", v)
	}
}

func deleteKey(ctx tool.Context, key string) {
	// Missing keys are fine.
	_ = ctx.State().Delete(key)
}

func maps[T interface{ ToMap() map[string]any }](items []T) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.ToMap()
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
