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

// Package agent defines the agent abstraction used by the storefront.
//
// An Agent consumes an InvocationContext and yields Events:
//
//	type Agent interface {
//	    Name() string
//	    Description() string
//	    Run(InvocationContext) iter.Seq2[*Event, error]
//	}
//
// The LLM-backed shopping agent lives in the llmagent subpackage; New
// wraps a plain function and is mostly useful in tests.
package agent

import (
	"errors"
	"iter"
)

// Agent produces the events of one invocation.
type Agent interface {
	Name() string
	Description() string
	Run(ctx InvocationContext) iter.Seq2[*Event, error]
}

// Config configures a function-backed agent.
type Config struct {
	Name        string
	Description string
	Run         func(InvocationContext) iter.Seq2[*Event, error]
}

// New returns an Agent that delegates to cfg.Run.
func New(cfg Config) (Agent, error) {
	if cfg.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if cfg.Run == nil {
		return nil, errors.New("agent run function is required")
	}
	return &funcAgent{cfg: cfg}, nil
}

type funcAgent struct {
	cfg Config
}

func (a *funcAgent) Name() string        { return a.cfg.Name }
func (a *funcAgent) Description() string { return a.cfg.Description }

func (a *funcAgent) Run(ctx InvocationContext) iter.Seq2[*Event, error] {
	return a.cfg.Run(ctx)
}
