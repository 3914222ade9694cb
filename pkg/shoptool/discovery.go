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


package shoptool

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/storefront/pkg/artifact"
	"github.com/kadirpekel/storefront/pkg/search"
	"github.com/kadirpekel/storefront/pkg/tool"
	"github.com/kadirpekel/storefront/pkg/tool/functiontool"
)

type TextSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Natural language description of the products to find"`
}

type ImageSearchArgs struct{}

func (ts *toolset) discoveryTools() []tool.CallableTool {
	return []tool.CallableTool{
		functiontool.Must(functiontool.Config{
			Name:        "text_vector_search",
			Description: "Semantic search over the product catalog. Returns the closest products with their distance (lower is closer).",
		}, ts.textSearch),
		functiontool.Must(functiontool.Config{
			Name:        "image_vector_search",
			Description: "Find products that look like the image the user uploaded with this message.",
		}, ts.imageSearch),
	}
}

func (ts *toolset) textSearch(ctx tool.Context, args TextSearchArgs) (map[string]any, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	hits, err := ts.search.SearchText(ctx, query, ts.topK)
	if err != nil {
		return nil, err
	}
	return ts.storeResults(ctx, hits)
}

func (ts *toolset) imageSearch(ctx tool.Context, _ ImageSearchArgs) (map[string]any, error) {
	data, err := stateBytes(ctx, KeyImageBytes)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no image found for session %s, ask the user to upload one", ctx.SessionID())
	}
	mimeType := stateString(ctx, KeyImageMimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	hits, err := ts.search.SearchImage(ctx, data, mimeType, ts.topK)
	if err != nil {
		return nil, err
	}
	return ts.storeResults(ctx, hits)
}

func (ts *toolset) storeResults(ctx tool.Context, hits []search.Hit) (map[string]any, error) {
	results := search.Maps(hits)
	if err := ctx.State().Set(artifact.KeyCurrentResults, results); err != nil {
		return nil, fmt.Errorf("failed to store results: %w", err)
	}
	return map[string]any{"products": results, "count": len(results)}, nil
}
