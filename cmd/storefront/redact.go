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


package main

import (
	"github.com/kadirpekel/storefront/pkg/config"
)

const redactedValue = "***"

// redacted returns a copy of cfg with secrets masked.
func redacted(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redactedValue
		}
	}
	mask(&cfg.LLM.APIKey)
	mask(&cfg.Embedder.APIKey)
	mask(&cfg.Search.Vector.APIKey)
	mask(&cfg.Database.Password)
	return cfg
}
