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

package llmagent

import (
	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/tool"
)

// toolContext gives a tool write-through access to session state. Writes
// land in the live session immediately and are recorded in actions so the
// tool result event carries them to the session store.
type toolContext struct {
	agent.InvocationContext

	functionCallID string
	actions        *agent.EventActions
	state          *agent.TrackedState
}

func newToolContext(ctx agent.InvocationContext, functionCallID string) *toolContext {
	actions := &agent.EventActions{StateDelta: make(map[string]any)}
	return &toolContext{
		InvocationContext: ctx,
		functionCallID:    functionCallID,
		actions:           actions,
		state:             agent.NewTrackedState(ctx.State(), actions.StateDelta),
	}
}

func (c *toolContext) FunctionCallID() string             { return c.functionCallID }
func (c *toolContext) Actions() *agent.EventActions       { return c.actions }
func (c *toolContext) State() agent.State                 { return c.state }
func (c *toolContext) ReadonlyState() agent.ReadonlyState { return c.state }

var _ tool.Context = (*toolContext)(nil)
