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

package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/storefront/pkg/agent"
)

// InMemoryService keeps sessions in process memory. Get returns the live
// session object, so state writes are visible to every holder at once.
func InMemoryService() Service {
	return &inMemoryService{sessions: make(map[string]*memorySession)}
}

type inMemoryService struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func sessionKey(appName, userID, sessionID string) string {
	return appName + "\x00" + userID + "\x00" + sessionID
}

func (s *inMemoryService) Get(_ context.Context, req *GetRequest) (*GetResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionKey(req.AppName, req.UserID, req.SessionID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &GetResponse{Session: sess}, nil
}

func (s *inMemoryService) Create(_ context.Context, req *CreateRequest) (*CreateResponse, error) {
	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	key := sessionKey(req.AppName, req.UserID, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[key]; exists {
		return nil, fmt.Errorf("session %s already exists", id)
	}
	sess := newMemorySession(req.AppName, req.UserID, id, req.State)
	s.sessions[key] = sess
	return &CreateResponse{Session: sess}, nil
}

func (s *inMemoryService) AppendEvent(_ context.Context, sess Session, event *agent.Event) error {
	if sess == nil || event == nil {
		return fmt.Errorf("session and event are required")
	}
	if event.Partial {
		return nil
	}

	s.mu.RLock()
	stored, ok := s.sessions[sessionKey(sess.AppName(), sess.UserID(), sess.ID())]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	now := time.Now()
	stored.apply(event, now)
	// A caller holding a different object (e.g. a copy) still sees the delta.
	if ms, ok := sess.(*memorySession); ok && ms != stored {
		ms.apply(event, now)
	}
	return nil
}

func (s *inMemoryService) List(_ context.Context, req *ListRequest) (*ListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	for _, sess := range s.sessions {
		if sess.appName != req.AppName {
			continue
		}
		if req.UserID != "" && sess.userID != req.UserID {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdateTime().After(out[j].LastUpdateTime())
	})
	return &ListResponse{Sessions: out}, nil
}

func (s *inMemoryService) Delete(_ context.Context, req *DeleteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(req.AppName, req.UserID, req.SessionID))
	return nil
}

var _ Service = (*inMemoryService)(nil)
