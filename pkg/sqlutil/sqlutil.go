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

// Package sqlutil holds the small amount of dialect handling shared by the
// SQL-backed stores. Queries are written with '?' placeholders and
// rebound for postgres.
package sqlutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Supported dialects.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// NormalizeDialect maps driver names to dialects and rejects unknown ones.
func NormalizeDialect(d string) (string, error) {
	switch strings.ToLower(d) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", d)
	}
}

// Rebind rewrites '?' placeholders to $1..$n for postgres. Question marks
// inside single-quoted literals are left alone.
func Rebind(dialect, query string) string {
	if dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Upsert renders an INSERT that replaces the listed update columns when
// the conflict key already exists.
func Upsert(dialect, table string, columns, key, update []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	sets := make([]string, len(update))
	switch dialect {
	case MySQL:
		for i, col := range update {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
		}
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	case Postgres:
		for i, col := range update {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
		}
	default:
		for i, col := range update {
			sets[i] = fmt.Sprintf("%s = excluded.%s", col, col)
		}
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", insert, strings.Join(key, ", "), strings.Join(sets, ", "))
}

// TextType returns a column type for large text in the dialect.
func TextType(dialect string) string {
	if dialect == MySQL {
		return "LONGTEXT"
	}
	return "TEXT"
}
