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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/sqlutil"
)

// SQLService persists sessions and events in postgres, mysql or sqlite.
//
// State is stored as one JSON document per session and updated in the
// same transaction that inserts an event, so a Get issued after
// AppendEvent returns always reflects the event's StateDelta.
type SQLService struct {
	db      *sql.DB
	dialect string
}

func sessionSchema(dialect string) []string {
	text := sqlutil.TextType(dialect)
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
    app_name VARCHAR(255) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    id VARCHAR(255) NOT NULL,
    state_json ` + text + `,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (app_name, user_id, id)
)`,
		`CREATE TABLE IF NOT EXISTS session_events (
    id VARCHAR(64) NOT NULL,
    app_name VARCHAR(255) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    session_id VARCHAR(255) NOT NULL,
    author VARCHAR(255),
    invocation_id VARCHAR(255),
    role VARCHAR(32),
    content_json ` + text + `,
    state_delta_json ` + text + `,
    tool_calls_json ` + text + `,
    tool_results_json ` + text + `,
    error_message ` + text + `,
    sequence_num INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (app_name, user_id, session_id, id)
)`,
	}
}

// NewSQLService creates the tables when missing.
func NewSQLService(db *sql.DB, dialect string) (*SQLService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	d, err := sqlutil.NormalizeDialect(dialect)
	if err != nil {
		return nil, err
	}
	s := &SQLService{db: db, dialect: d}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, stmt := range sessionSchema(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize session schema: %w", err)
		}
	}
	return s, nil
}

func (s *SQLService) q(query string) string {
	return sqlutil.Rebind(s.dialect, query)
}

func (s *SQLService) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	var (
		stateJSON sql.NullString
		updated   time.Time
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT state_json, updated_at FROM sessions WHERE app_name = ? AND user_id = ? AND id = ?`),
		req.AppName, req.UserID, req.SessionID).Scan(&stateJSON, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	state, err := decodeState(stateJSON.String)
	if err != nil {
		return nil, err
	}
	sess := newMemorySession(req.AppName, req.UserID, req.SessionID, state)
	sess.updated = updated

	events, err := s.loadEvents(ctx, req)
	if err != nil {
		return nil, err
	}
	sess.events.events = events
	return &GetResponse{Session: sess}, nil
}

func (s *SQLService) loadEvents(ctx context.Context, req *GetRequest) ([]*agent.Event, error) {
	query := `SELECT id, author, invocation_id, role, content_json, state_delta_json,
       tool_calls_json, tool_results_json, error_message, created_at
  FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ?
 ORDER BY sequence_num DESC`
	args := []any{req.AppName, req.UserID, req.SessionID}
	if req.NumRecentEvents > 0 {
		query += " LIMIT ?"
		args = append(args, req.NumRecentEvents)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var events []*agent.Event
	for rows.Next() {
		var (
			ev                                              agent.Event
			author, invocation, role, content, delta, calls sql.NullString
			results, errMsg                                 sql.NullString
		)
		if err := rows.Scan(&ev.ID, &author, &invocation, &role, &content, &delta,
			&calls, &results, &errMsg, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Author = author.String
		ev.InvocationID = invocation.String
		ev.ErrorMessage = errMsg.String
		if err := decodeEventColumns(&ev, role.String, content.String, delta.String, calls.String, results.String); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", ev.ID, err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows came newest first so LIMIT keeps the most recent ones.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *SQLService) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	state := req.State
	if state == nil {
		state = map[string]any{}
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO sessions (app_name, user_id, id, state_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		req.AppName, req.UserID, id, string(stateJSON), now, now); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess := newMemorySession(req.AppName, req.UserID, id, state)
	sess.updated = now
	return &CreateResponse{Session: sess}, nil
}

func (s *SQLService) AppendEvent(ctx context.Context, sess Session, event *agent.Event) error {
	if sess == nil || event == nil {
		return fmt.Errorf("session and event are required")
	}
	if event.Partial {
		return nil
	}

	row, err := encodeEvent(event)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stateJSON sql.NullString
	err = tx.QueryRowContext(ctx,
		s.q(`SELECT state_json FROM sessions WHERE app_name = ? AND user_id = ? AND id = ?`),
		sess.AppName(), sess.UserID(), sess.ID()).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read session state: %w", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		s.q(`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ?`),
		sess.AppName(), sess.UserID(), sess.ID()).Scan(&seq); err != nil {
		return fmt.Errorf("failed to get sequence number: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO session_events
    (id, app_name, user_id, session_id, author, invocation_id, role, content_json,
     state_delta_json, tool_calls_json, tool_results_json, error_message, sequence_num, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		event.ID, sess.AppName(), sess.UserID(), sess.ID(), event.Author, event.InvocationID,
		row.role, row.content, row.delta, row.calls, row.results, event.ErrorMessage,
		seq, event.Timestamp.UTC()); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	now := time.Now().UTC()
	if len(event.Actions.StateDelta) > 0 {
		state, err := decodeState(stateJSON.String)
		if err != nil {
			return err
		}
		applyDelta(state, event.Actions.StateDelta)
		merged, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			s.q(`UPDATE sessions SET state_json = ?, updated_at = ? WHERE app_name = ? AND user_id = ? AND id = ?`),
			string(merged), now, sess.AppName(), sess.UserID(), sess.ID())
		if err != nil {
			return fmt.Errorf("failed to update session state: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			s.q(`UPDATE sessions SET updated_at = ? WHERE app_name = ? AND user_id = ? AND id = ?`),
			now, sess.AppName(), sess.UserID(), sess.ID())
		if err != nil {
			return fmt.Errorf("failed to touch session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}

	if ms, ok := sess.(*memorySession); ok {
		ms.apply(event, now)
	}
	return nil
}

func (s *SQLService) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	query := `SELECT user_id, id, state_json, updated_at FROM sessions WHERE app_name = ?`
	args := []any{req.AppName}
	if req.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, req.UserID)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			userID, id string
			stateJSON  sql.NullString
			updated    time.Time
		)
		if err := rows.Scan(&userID, &id, &stateJSON, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		state, err := decodeState(stateJSON.String)
		if err != nil {
			return nil, err
		}
		sess := newMemorySession(req.AppName, userID, id, state)
		sess.updated = updated
		out = append(out, sess)
	}
	return &ListResponse{Sessions: out}, rows.Err()
}

func (s *SQLService) Delete(ctx context.Context, req *DeleteRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.q(`DELETE FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ?`),
		req.AppName, req.UserID, req.SessionID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.q(`DELETE FROM sessions WHERE app_name = ? AND user_id = ? AND id = ?`),
		req.AppName, req.UserID, req.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return tx.Commit()
}

func decodeState(raw string) (map[string]any, error) {
	state := make(map[string]any)
	if raw == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return state, nil
}

type eventColumns struct {
	role, content, delta, calls, results string
}

func encodeEvent(ev *agent.Event) (eventColumns, error) {
	var cols eventColumns
	marshal := func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	}

	var err error
	if ev.Message != nil {
		cols.role = string(ev.Message.Role)
		if cols.content, err = marshal(ev.Message.Parts); err != nil {
			return cols, fmt.Errorf("failed to marshal message parts: %w", err)
		}
	}
	if len(ev.Actions.StateDelta) > 0 {
		if cols.delta, err = marshal(ev.Actions.StateDelta); err != nil {
			return cols, fmt.Errorf("failed to marshal state delta: %w", err)
		}
	}
	if len(ev.ToolCalls) > 0 {
		if cols.calls, err = marshal(ev.ToolCalls); err != nil {
			return cols, err
		}
	}
	if len(ev.ToolResults) > 0 {
		if cols.results, err = marshal(ev.ToolResults); err != nil {
			return cols, err
		}
	}
	return cols, nil
}

func decodeEventColumns(ev *agent.Event, role, content, delta, calls, results string) error {
	if content != "" {
		var raws []json.RawMessage
		if err := json.Unmarshal([]byte(content), &raws); err != nil {
			return err
		}
		parts := make(a2a.ContentParts, 0, len(raws))
		for _, raw := range raws {
			part, err := decodePart(raw)
			if err != nil {
				return err
			}
			if part != nil {
				parts = append(parts, part)
			}
		}
		ev.Message = &a2a.Message{Role: a2a.MessageRole(role), Parts: parts}
	}
	ev.Actions.StateDelta = map[string]any{}
	if delta != "" {
		if err := json.Unmarshal([]byte(delta), &ev.Actions.StateDelta); err != nil {
			return err
		}
	}
	if calls != "" {
		if err := json.Unmarshal([]byte(calls), &ev.ToolCalls); err != nil {
			return err
		}
	}
	if results != "" {
		if err := json.Unmarshal([]byte(results), &ev.ToolResults); err != nil {
			return err
		}
	}
	return nil
}

func decodePart(raw json.RawMessage) (a2a.Part, error) {
	var peek struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, err
	}
	switch peek.Kind {
	case "text":
		var p a2a.TextPart
		err := json.Unmarshal(raw, &p)
		return p, err
	case "file":
		var p a2a.FilePart
		err := json.Unmarshal(raw, &p)
		return p, err
	case "data":
		var p a2a.DataPart
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		slog.Debug("Skipping unknown part kind in stored event", "kind", peek.Kind)
		return nil, nil
	}
}

var _ Service = (*SQLService)(nil)
