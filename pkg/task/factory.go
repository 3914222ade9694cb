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


package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/kadirpekel/storefront/pkg/config"
)

// NewStore returns the task store selected by cfg.Server.Tasks. A nil
// store means a2asrv keeps tasks in memory.
//
//	server:
//	  tasks:
//	    backend: sql
func NewStore(ctx context.Context, cfg *config.Config, pool *config.DBPool) (a2asrv.TaskStore, error) {
	switch cfg.Server.Tasks.Backend {
	case config.BackendInMemory, "":
		return nil, nil
	case config.BackendSQL:
		if pool == nil {
			return nil, fmt.Errorf("a database pool is required for the sql task backend")
		}
		db, err := pool.Get(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open task database: %w", err)
		}
		slog.Debug("Using SQL task store", "driver", cfg.Database.Driver)
		return NewSQLStore(db, cfg.Database.Dialect())
	default:
		return nil, fmt.Errorf("unknown tasks backend %q", cfg.Server.Tasks.Backend)
	}
}
