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


// Package vector stores catalog embeddings and answers nearest-neighbour
// queries against them.
//
// Providers receive pre-computed vectors; embedding is the caller's job.
// Scores are cosine similarities, higher is closer.
package vector

import "context"

// Result is one search hit.
type Result struct {
	// ID is the document id given to Upsert.
	ID       string
	Score    float32
	Metadata map[string]any
}

// Distance converts the similarity score to a cosine distance.
func (r Result) Distance() float64 {
	return 1 - float64(r.Score)
}

// Provider is a vector index.
type Provider interface {
	Name() string

	// CreateCollection makes sure the collection exists. It is a no-op when it
	// already does.
	CreateCollection(ctx context.Context, collection string, dimension int) error

	// Upsert inserts or replaces the vector stored under id.
	Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error

	// Search returns at most topK results, best first.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	Delete(ctx context.Context, collection, id string) error
	Close() error
}
