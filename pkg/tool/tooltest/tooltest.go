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

// Package tooltest provides an in-memory tool.Context for tool tests.
package tooltest

import (
	"context"
	"errors"
	"iter"
	"maps"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/tool"
)

// ErrNoKey is returned by the map state for missing keys.
var ErrNoKey = errors.New("state key does not exist")

// MapState is a plain map-backed agent.State.
type MapState map[string]any

func (s MapState) Get(key string) (any, error) {
	v, ok := s[key]
	if !ok {
		return nil, ErrNoKey
	}
	return v, nil
}

func (s MapState) Set(key string, value any) error {
	s[key] = value
	return nil
}

func (s MapState) Delete(key string) error {
	delete(s, key)
	return nil
}

func (s MapState) All() iter.Seq2[string, any] {
	snapshot := maps.Clone(map[string]any(s))
	return func(yield func(string, any) bool) {
		for k, v := range snapshot {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Context is a tool.Context over a MapState. Writes through State() are
// recorded in Actions().StateDelta like the real flow does.
type Context struct {
	context.Context

	Base    MapState
	User    string
	actions *agent.EventActions
	tracked *agent.TrackedState
}

// NewContext returns a context whose state starts as a copy of initial.
func NewContext(initial map[string]any) *Context {
	base := MapState{}
	maps.Copy(base, initial)
	actions := &agent.EventActions{StateDelta: map[string]any{}}
	return &Context{
		Context: context.Background(),
		Base:    base,
		User:    "test-user",
		actions: actions,
		tracked: agent.NewTrackedState(base, actions.StateDelta),
	}
}

// Delta is the state delta recorded so far.
func (c *Context) Delta() map[string]any { return c.actions.StateDelta }

func (c *Context) FunctionCallID() string             { return "call-1" }
func (c *Context) Actions() *agent.EventActions       { return c.actions }
func (c *Context) State() agent.State                 { return c.tracked }
func (c *Context) ReadonlyState() agent.ReadonlyState { return c.tracked }
func (c *Context) InvocationID() string               { return "inv-test" }
func (c *Context) AgentName() string                  { return "shopping_assistant" }
func (c *Context) UserContent() *agent.Content        { return nil }
func (c *Context) UserID() string                     { return c.User }
func (c *Context) AppName() string                    { return "shopping_assistant" }
func (c *Context) SessionID() string                  { return "session-test" }

var _ tool.Context = (*Context)(nil)
