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

// Package session stores conversations: their key-value state and event
// history.
//
// # Mutation visibility
//
// Every Service guarantees read-after-write within a process: once
// AppendEvent returns, a subsequent Get for the same session observes the
// event and its StateDelta. The runner appends each complete event before
// yielding it, so the server's turn loop can read state with a plain Get
// after every event without re-fetch verification.
package session

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/kadirpekel/storefront/pkg/agent"
)

// Session is a conversation between a user and the agent.
type Session interface {
	ID() string
	AppName() string
	UserID() string
	State() agent.State
	Events() agent.Events
	LastUpdateTime() time.Time
}

// Service manages session lifecycle and persistence.
type Service interface {
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)
	Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error)

	// AppendEvent records a complete event and applies its StateDelta.
	// Partial events are ignored.
	AppendEvent(ctx context.Context, session Session, event *agent.Event) error

	List(ctx context.Context, req *ListRequest) (*ListResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) error
}

type GetRequest struct {
	AppName   string
	UserID    string
	SessionID string

	// NumRecentEvents limits the returned history. Zero returns all.
	NumRecentEvents int
}

type GetResponse struct {
	Session Session
}

type CreateRequest struct {
	AppName string
	UserID  string

	// SessionID is generated when empty.
	SessionID string
	State     map[string]any
}

type CreateResponse struct {
	Session Session
}

type ListRequest struct {
	AppName string
	UserID  string
}

type ListResponse struct {
	Sessions []Session
}

type DeleteRequest struct {
	AppName   string
	UserID    string
	SessionID string
}

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrStateKeyNotExist = errors.New("state key does not exist")
)

// memorySession backs both services; the SQL service rebuilds one per Get.
type memorySession struct {
	id      string
	appName string
	userID  string
	state   *memoryState
	events  *memoryEvents

	mu      sync.RWMutex
	updated time.Time
}

func newMemorySession(appName, userID, id string, state map[string]any) *memorySession {
	return &memorySession{
		id:      id,
		appName: appName,
		userID:  userID,
		state:   newMemoryState(state),
		events:  &memoryEvents{},
		updated: time.Now(),
	}
}

func (s *memorySession) ID() string           { return s.id }
func (s *memorySession) AppName() string      { return s.appName }
func (s *memorySession) UserID() string       { return s.userID }
func (s *memorySession) State() agent.State   { return s.state }
func (s *memorySession) Events() agent.Events { return s.events }

func (s *memorySession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

func (s *memorySession) apply(event *agent.Event, at time.Time) {
	s.state.applyDelta(event.Actions.StateDelta)
	s.events.append(event)
	s.mu.Lock()
	s.updated = at
	s.mu.Unlock()
}

type memoryState struct {
	mu   sync.RWMutex
	data map[string]any
}

func newMemoryState(initial map[string]any) *memoryState {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &memoryState{data: data}
}

func (s *memoryState) Get(key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrStateKeyNotExist
	}
	return v, nil
}

func (s *memoryState) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memoryState) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// All iterates over a copy so callers may write state while iterating.
func (s *memoryState) All() iter.Seq2[string, any] {
	s.mu.RLock()
	snapshot := make(map[string]any, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	return func(yield func(string, any) bool) {
		for k, v := range snapshot {
			if !yield(k, v) {
				return
			}
		}
	}
}

func (s *memoryState) applyDelta(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	applyDelta(s.data, delta)
}

// applyDelta merges delta into dst; nil values remove keys.
func applyDelta(dst, delta map[string]any) {
	for k, v := range delta {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

type memoryEvents struct {
	mu     sync.RWMutex
	events []*agent.Event
}

func (e *memoryEvents) All() iter.Seq[*agent.Event] {
	e.mu.RLock()
	events := append([]*agent.Event(nil), e.events...)
	e.mu.RUnlock()

	return func(yield func(*agent.Event) bool) {
		for _, ev := range events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (e *memoryEvents) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events)
}

func (e *memoryEvents) At(i int) *agent.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.events) {
		return nil
	}
	return e.events[i]
}

func (e *memoryEvents) append(ev *agent.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

var (
	_ Session      = (*memorySession)(nil)
	_ agent.State  = (*memoryState)(nil)
	_ agent.Events = (*memoryEvents)(nil)
)
