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

package agent

import (
	"context"
	"iter"

	"github.com/google/uuid"
)

/*
InvocationContext is the context of one agent invocation.

An invocation starts with a user message and ends with a final response.
It is created by the runner and may contain several steps:

	┌──────────────────── invocation ────────────────────┐
	┌──── step_1 ────────┐ ┌───── step_2 ──────┐ ┌ step_3 ┐
	[call_llm] [call_tool] [call_llm] [call_tool] [call_llm]
*/
type InvocationContext interface {
	CallbackContext

	Agent() Agent
	Session() Session
	RunConfig() *RunConfig

	// EndInvocation stops the agent after the current step.
	EndInvocation()
	Ended() bool
}

// ReadonlyContext exposes invocation data without mutation.
type ReadonlyContext interface {
	context.Context

	InvocationID() string
	AgentName() string
	UserContent() *Content
	ReadonlyState() ReadonlyState
	UserID() string
	AppName() string
	SessionID() string
}

// CallbackContext adds mutable session state.
type CallbackContext interface {
	ReadonlyContext
	State() State
}

// Session is a conversation with its state and event history.
// Defined here to avoid an import cycle with the session package.
type Session interface {
	ID() string
	AppName() string
	UserID() string
	State() State
	Events() Events
}

// State is the mutable key-value session state.
//
// Writes are visible to subsequent reads through the same handle
// immediately.
type State interface {
	Get(key string) (any, error)
	Set(key string, value any) error
	Delete(key string) error
	All() iter.Seq2[string, any]
}

// ReadonlyState is State without mutation.
type ReadonlyState interface {
	Get(key string) (any, error)
	All() iter.Seq2[string, any]
}

// Events is the ordered event history of a session.
type Events interface {
	All() iter.Seq[*Event]
	Len() int
	At(i int) *Event
}

// RunConfig carries per-invocation options.
type RunConfig struct {
	// Streaming requests partial text events from the model.
	Streaming bool
}

type invocationContext struct {
	context.Context

	agent        Agent
	session      Session
	invocationID string
	userContent  *Content
	runConfig    *RunConfig
	ended        bool
}

// InvocationContextParams configures NewInvocationContext.
type InvocationContextParams struct {
	Session     Session
	Agent       Agent
	UserContent *Content
	RunConfig   *RunConfig
}

func NewInvocationContext(ctx context.Context, params InvocationContextParams) InvocationContext {
	rc := params.RunConfig
	if rc == nil {
		rc = &RunConfig{}
	}
	return &invocationContext{
		Context:      ctx,
		agent:        params.Agent,
		session:      params.Session,
		invocationID: "inv-" + uuid.NewString(),
		userContent:  params.UserContent,
		runConfig:    rc,
	}
}

func (c *invocationContext) Agent() Agent          { return c.agent }
func (c *invocationContext) Session() Session      { return c.session }
func (c *invocationContext) InvocationID() string  { return c.invocationID }
func (c *invocationContext) UserContent() *Content { return c.userContent }
func (c *invocationContext) RunConfig() *RunConfig { return c.runConfig }
func (c *invocationContext) EndInvocation()        { c.ended = true }
func (c *invocationContext) Ended() bool           { return c.ended }

func (c *invocationContext) AgentName() string {
	if c.agent == nil {
		return ""
	}
	return c.agent.Name()
}

func (c *invocationContext) ReadonlyState() ReadonlyState { return c.State() }

func (c *invocationContext) State() State {
	if c.session == nil {
		return nil
	}
	return c.session.State()
}

func (c *invocationContext) UserID() string {
	if c.session == nil {
		return ""
	}
	return c.session.UserID()
}

func (c *invocationContext) AppName() string {
	if c.session == nil {
		return ""
	}
	return c.session.AppName()
}

func (c *invocationContext) SessionID() string {
	if c.session == nil {
		return ""
	}
	return c.session.ID()
}

// TrackedState wraps a State and records every write into a delta map so
// the writes can travel on an event. Reads see the live state.
type TrackedState struct {
	state State
	delta map[string]any
}

// NewTrackedState records writes to state into delta.
func NewTrackedState(state State, delta map[string]any) *TrackedState {
	return &TrackedState{state: state, delta: delta}
}

func (s *TrackedState) Get(key string) (any, error) {
	return s.state.Get(key)
}

func (s *TrackedState) Set(key string, value any) error {
	if err := s.state.Set(key, value); err != nil {
		return err
	}
	s.delta[key] = value
	return nil
}

func (s *TrackedState) Delete(key string) error {
	if err := s.state.Delete(key); err != nil {
		return err
	}
	s.delta[key] = nil
	return nil
}

func (s *TrackedState) All() iter.Seq2[string, any] {
	return s.state.All()
}

// StateMap copies the top level of a state into a plain map.
func StateMap(s ReadonlyState) map[string]any {
	out := make(map[string]any)
	if s == nil {
		return out
	}
	for k, v := range s.All() {
		out[k] = v
	}
	return out
}

var (
	_ InvocationContext = (*invocationContext)(nil)
	_ State             = (*TrackedState)(nil)
)
