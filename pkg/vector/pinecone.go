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
	"context"
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig addresses one serverless index. Collections map to
// namespaces inside it.
type PineconeConfig struct {
	APIKey string
	// Host is the index host, e.g. catalog-abc123.svc.us-east1-gcp.pinecone.io.
	Host string
}

// PineconeProvider stores vectors in a Pinecone index.
type PineconeProvider struct {
	client *pinecone.Client
	host   string

	mu    sync.Mutex
	conns map[string]*pinecone.IndexConnection
}

// NewPineconeProvider creates the client. Connections are opened lazily per
// namespace.
func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("pinecone index host is required")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}
	return &PineconeProvider{
		client: client,
		host:   cfg.Host,
		conns:  make(map[string]*pinecone.IndexConnection),
	}, nil
}

func (p *PineconeProvider) conn(namespace string) (*pinecone.IndexConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[namespace]; ok {
		return c, nil
	}
	c, err := p.client.Index(pinecone.NewIndexConnParams{Host: p.host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}
	p.conns[namespace] = c
	return c, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

// CreateCollection only opens the namespace; Pinecone creates namespaces on
// first write and the index itself is provisioned out of band.
func (p *PineconeProvider) CreateCollection(_ context.Context, collection string, _ int) error {
	_, err := p.conn(collection)
	return err
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	c, err := p.conn(collection)
	if err != nil {
		return err
	}

	var meta *pinecone.Metadata
	if len(metadata) > 0 {
		meta, err = structpb.NewStruct(metadata)
		if err != nil {
			return fmt.Errorf("failed to convert metadata: %w", err)
		}
	}
	_, err = c.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: meta}})
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", id, err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		return []Result{}, nil
	}
	c, err := p.conn(collection)
	if err != nil {
		return nil, err
	}

	res, err := c.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		meta := map[string]any{}
		if m.Vector.Metadata != nil {
			meta = m.Vector.Metadata.AsMap()
		}
		out = append(out, Result{ID: m.Vector.Id, Score: m.Score, Metadata: meta})
	}
	return out, nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection, id string) error {
	c, err := p.conn(collection)
	if err != nil {
		return err
	}
	if err := c.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

func (p *PineconeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for ns, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, ns)
	}
	return firstErr
}

var _ Provider = (*PineconeProvider)(nil)
