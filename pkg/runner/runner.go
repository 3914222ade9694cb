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

// Package runner executes an agent against a session.
package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/session"
)

// Config configures a Runner.
type Config struct {
	AppName        string
	Agent          agent.Agent
	SessionService session.Service
}

// Runner drives one agent invocation per user message.
type Runner struct {
	appName        string
	agent          agent.Agent
	sessionService session.Service
}

func New(cfg Config) (*Runner, error) {
	if cfg.AppName == "" {
		return nil, errors.New("app name is required")
	}
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.SessionService == nil {
		return nil, errors.New("session service is required")
	}
	return &Runner{
		appName:        cfg.AppName,
		agent:          cfg.Agent,
		sessionService: cfg.SessionService,
	}, nil
}

func (r *Runner) AppName() string { return r.appName }

// SessionService is the store events are persisted to.
func (r *Runner) SessionService() session.Service { return r.sessionService }

// Run appends content to the session and runs the agent, yielding its
// events. Every non-partial event is appended to the session before it is
// yielded, so a Get issued by the consumer observes its state delta. The
// last event yielded on success is the agent's final response.
func (r *Runner) Run(ctx context.Context, userID, sessionID string, content *agent.Content, cfg agent.RunConfig) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		sess, err := r.getOrCreateSession(ctx, userID, sessionID)
		if err != nil {
			yield(nil, err)
			return
		}

		invCtx := agent.NewInvocationContext(ctx, agent.InvocationContextParams{
			Agent:       r.agent,
			Session:     sess,
			UserContent: content,
			RunConfig:   &cfg,
		})

		if content != nil {
			ev := agent.NewEvent(invCtx.InvocationID())
			ev.Author = agent.AuthorUser
			ev.Message = content.ToMessage()
			if err := r.sessionService.AppendEvent(ctx, sess, ev); err != nil {
				yield(nil, fmt.Errorf("failed to append user message: %w", err))
				return
			}
		}

		for ev, err := range r.agent.Run(invCtx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !ev.Partial {
				if err := r.sessionService.AppendEvent(ctx, sess, ev); err != nil {
					yield(nil, fmt.Errorf("failed to persist event: %w", err))
					return
				}
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (r *Runner) getOrCreateSession(ctx context.Context, userID, sessionID string) (session.Session, error) {
	resp, err := r.sessionService.Get(ctx, &session.GetRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err == nil {
		return resp.Session, nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	created, err := r.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
		State:     make(map[string]any),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return created.Session, nil
}
