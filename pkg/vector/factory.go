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


package vector

import (
	"fmt"

	"github.com/kadirpekel/storefront/pkg/config"
)

// NewProvider builds the provider selected by cfg.
func NewProvider(cfg config.VectorConfig) (Provider, error) {
	switch cfg.Provider {
	case config.VectorChromem, "":
		return NewChromemProvider(ChromemConfig{
			PersistPath: cfg.PersistPath,
			Compress:    cfg.Compress,
		})
	case config.VectorQdrant:
		return NewQdrantProvider(QdrantConfig{
			Host:   cfg.Host,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
			UseTLS: cfg.UseTLS,
		})
	case config.VectorPinecone:
		return NewPineconeProvider(PineconeConfig{
			APIKey: cfg.APIKey,
			Host:   cfg.Host,
		})
	default:
		return nil, fmt.Errorf("unknown vector provider %q", cfg.Provider)
	}
}
