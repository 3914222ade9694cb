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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env.local and .env from the working directory and,
// when configPath is a local file, from its directory. Variables already
// set in the process environment are never overridden, so earlier files
// win over later ones.
func LoadDotEnv(configPath string) error {
	dirs := []string{"."}
	if configPath != "" {
		if dir := filepath.Dir(configPath); dir != "." {
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		for _, name := range []string{".env.local", ".env"} {
			path := filepath.Join(dir, name)
			err := godotenv.Load(path)
			switch {
			case err == nil:
				slog.Debug("Loaded environment file", "path", path)
			case errors.Is(err, fs.ErrNotExist):
			default:
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}
	return nil
}

// envPattern matches ${VAR}, ${VAR:-default} and $VAR.
var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		if !strings.HasPrefix(match, "${") {
			return os.Getenv(match[1:])
		}
		inner := match[2 : len(match)-1]
		name, def, hasDefault := strings.Cut(inner, ":-")
		if v := os.Getenv(name); v != "" || !hasDefault {
			return v
		}
		return def
	})
}

// expandTree expands environment references in every string of a decoded
// YAML document.
func expandTree(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnv(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandTree(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandTree(item)
		}
		return out
	default:
		return v
	}
}
