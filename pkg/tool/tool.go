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

// Package tool defines the functions an agent can call.
//
// Tools receive a Context whose State() writes are visible immediately to
// later reads in the same turn and are recorded in Actions().StateDelta so
// they travel with the tool result event into the session store.
package tool

import (
	"github.com/kadirpekel/storefront/pkg/agent"
)

// Tool is anything the model can be told about.
type Tool interface {
	Name() string
	Description() string
}

// CallableTool executes synchronously.
type CallableTool interface {
	Tool

	// Call runs the tool. A returned error is reported to the model as an
	// error result; it does not abort the turn.
	Call(ctx Context, args map[string]any) (map[string]any, error)

	// Schema is the JSON schema of the arguments, or nil.
	Schema() map[string]any
}

// Context is the execution context of one tool call.
type Context interface {
	agent.CallbackContext

	FunctionCallID() string
	Actions() *agent.EventActions
}

// Definition describes a tool to the model.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToDefinition converts a tool to the model-facing description.
func ToDefinition(t Tool) Definition {
	def := Definition{Name: t.Name(), Description: t.Description()}
	if ct, ok := t.(CallableTool); ok {
		def.Parameters = ct.Schema()
	}
	return def
}

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}
