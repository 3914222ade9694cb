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
	"log/slog"

	"github.com/kadirpekel/storefront/pkg/config"
)

// NewService builds the session service selected by cfg.Sessions.
func NewService(ctx context.Context, cfg *config.Config, pool *config.DBPool) (Service, error) {
	switch cfg.Sessions.Backend {
	case config.BackendInMemory, "":
		slog.Debug("Using in-memory session service")
		return InMemoryService(), nil
	case config.BackendSQL:
		db, err := pool.Get(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		slog.Debug("Using SQL session service", "driver", cfg.Database.Driver)
		return NewSQLService(db, cfg.Database.Dialect())
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}
