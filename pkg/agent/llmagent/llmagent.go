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

// Package llmagent provides an agent driven by a language model with
// function calling.
package llmagent

import (
	"errors"
	"iter"
	"time"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/model"
	"github.com/kadirpekel/storefront/pkg/tool"
)

const defaultMaxIterations = 12

// InstructionProvider builds the system instruction per model call.
type InstructionProvider func(ctx agent.ReadonlyContext) (string, error)

// ToolObserver is told about every tool execution.
type ToolObserver func(name string, elapsed time.Duration, err error)

// Config configures an LLM agent.
type Config struct {
	Name        string
	Description string
	Model       model.LLM

	// Instruction is the static system instruction. InstructionProvider,
	// when set, takes precedence.
	Instruction         string
	InstructionProvider InstructionProvider

	Tools          []tool.Tool
	GenerateConfig *model.GenerateConfig

	// MaxIterations bounds model calls per invocation.
	MaxIterations int

	// HistoryTokens caps the history sent to the model. Zero or a nil
	// TokenCounter disables trimming.
	HistoryTokens int
	TokenCounter  TokenCounter

	OnToolCall ToolObserver
}

type llmAgent struct {
	name        string
	description string
	model       model.LLM

	instruction         string
	instructionProvider InstructionProvider

	tools          map[string]tool.Tool
	definitions    []tool.Definition
	generateConfig *model.GenerateConfig
	maxIterations  int

	historyTokens int
	counter       TokenCounter
	onToolCall    ToolObserver
}

// New creates an LLM agent.
func New(cfg Config) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("model is required")
	}

	a := &llmAgent{
		name:                cfg.Name,
		description:         cfg.Description,
		model:               cfg.Model,
		instruction:         cfg.Instruction,
		instructionProvider: cfg.InstructionProvider,
		tools:               make(map[string]tool.Tool, len(cfg.Tools)),
		generateConfig:      cfg.GenerateConfig,
		maxIterations:       cfg.MaxIterations,
		historyTokens:       cfg.HistoryTokens,
		counter:             cfg.TokenCounter,
		onToolCall:          cfg.OnToolCall,
	}
	if a.maxIterations <= 0 {
		a.maxIterations = defaultMaxIterations
	}
	for _, t := range cfg.Tools {
		if _, dup := a.tools[t.Name()]; dup {
			return nil, errors.New("duplicate tool name: " + t.Name())
		}
		a.tools[t.Name()] = t
		a.definitions = append(a.definitions, tool.ToDefinition(t))
	}
	return a, nil
}

func (a *llmAgent) Name() string        { return a.name }
func (a *llmAgent) Description() string { return a.description }

func (a *llmAgent) Run(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
	return newFlow(a).run(ctx)
}

func (a *llmAgent) systemInstruction(ctx agent.ReadonlyContext) (string, error) {
	if a.instructionProvider != nil {
		return a.instructionProvider(ctx)
	}
	return a.instruction, nil
}
