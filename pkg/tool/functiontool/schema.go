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

package functiontool

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// generateSchema reflects Args into an inline object schema:
// {"type":"object","properties":{...},"required":[...]}.
func generateSchema[Args any]() (map[string]any, error) {
	t := reflect.TypeFor[Args]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("arguments must be a struct, got %s", t.Kind())
	}

	// The reflector only registers named types as definitions, so
	// anonymous structs are reflected inline instead of expanded.
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             t.Name() != "",
		DoNotReference:             true,
		AllowAdditionalProperties:  true,
	}

	data, err := json.Marshal(r.Reflect(new(Args)))
	if err != nil {
		return nil, err
	}
	var full map[string]any
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, err
	}
	if full["type"] != "object" {
		return nil, fmt.Errorf("arguments must be a struct, got schema type %v", full["type"])
	}

	props, _ := full["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req, ok := full["required"].([]any); ok && len(req) > 0 {
		schema["required"] = req
	}
	return schema, nil
}
