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


// Package task persists A2A tasks so they survive restarts. Without a SQL
// backend the a2asrv handler keeps tasks in memory.
package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/kadirpekel/storefront/pkg/sqlutil"
)

// SQLStore implements a2asrv.TaskStore on postgres, mysql or sqlite.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

func taskSchema(dialect string) []string {
	text := sqlutil.TextType(dialect)
	return []string{
		`CREATE TABLE IF NOT EXISTS a2a_tasks (
    id VARCHAR(255) PRIMARY KEY,
    context_id VARCHAR(255) NOT NULL,
    state VARCHAR(32) NOT NULL,
    status_json ` + text + ` NOT NULL,
    history_json ` + text + `,
    artifacts_json ` + text + `,
    metadata_json ` + text + `,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_a2a_tasks_context_id ON a2a_tasks(context_id)`,
	}
}

var taskColumns = []string{
	"id", "context_id", "state", "status_json", "history_json",
	"artifacts_json", "metadata_json", "created_at", "updated_at",
}

// NewSQLStore creates the table when missing.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	d, err := sqlutil.NormalizeDialect(dialect)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, stmt := range taskSchema(d) {
		if d == sqlutil.MySQL && strings.HasPrefix(stmt, "CREATE INDEX") {
			// MySQL has no CREATE INDEX IF NOT EXISTS; the primary key serves lookups.
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize task schema: %w", err)
		}
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// Save inserts or replaces a task. created_at is kept on update.
func (s *SQLStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}
	status, err := json.Marshal(task.Status)
	if err != nil {
		return fmt.Errorf("failed to marshal task status: %w", err)
	}
	history, err := marshalOr(task.History, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal task history: %w", err)
	}
	artifacts, err := marshalOr(task.Artifacts, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal task artifacts: %w", err)
	}
	metadata, err := marshalOr(task.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal task metadata: %w", err)
	}

	now := time.Now().UTC()
	query := sqlutil.Upsert(s.dialect, "a2a_tasks", taskColumns, []string{"id"},
		[]string{"context_id", "state", "status_json", "history_json", "artifacts_json", "metadata_json", "updated_at"})
	if _, err := s.db.ExecContext(ctx, sqlutil.Rebind(s.dialect, query),
		string(task.ID), task.ContextID, string(task.Status.State), string(status),
		history, artifacts, metadata, now, now); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	slog.Debug("Saved task", "task", task.ID, "state", task.Status.State)
	return nil
}

// Get returns a2a.ErrTaskNotFound for unknown ids.
func (s *SQLStore) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	var task a2a.Task
	var id, status string
	var history, artifacts, metadata sql.NullString
	err := s.db.QueryRowContext(ctx, sqlutil.Rebind(s.dialect,
		`SELECT id, context_id, status_json, history_json, artifacts_json, metadata_json FROM a2a_tasks WHERE id = ?`),
		string(taskID)).Scan(&id, &task.ContextID, &status, &history, &artifacts, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	task.ID = a2a.TaskID(id)

	if err := json.Unmarshal([]byte(status), &task.Status); err != nil {
		return nil, fmt.Errorf("failed to decode task status: %w", err)
	}
	if history.Valid && history.String != "" {
		if err := json.Unmarshal([]byte(history.String), &task.History); err != nil {
			return nil, fmt.Errorf("failed to decode task history: %w", err)
		}
	}
	if artifacts.Valid && artifacts.String != "" {
		if err := json.Unmarshal([]byte(artifacts.String), &task.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to decode task artifacts: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "{}" {
		if err := json.Unmarshal([]byte(metadata.String), &task.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode task metadata: %w", err)
		}
	}
	return &task, nil
}

// ListByContext returns the tasks of one conversation, oldest first.
func (s *SQLStore) ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, error) {
	rows, err := s.db.QueryContext(ctx, sqlutil.Rebind(s.dialect,
		`SELECT id FROM a2a_tasks WHERE context_id = ? ORDER BY created_at, id`), contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	var ids []a2a.TaskID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, a2a.TaskID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tasks := make([]*a2a.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func marshalOr(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

var _ a2asrv.TaskStore = (*SQLStore)(nil)
