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

package observability

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kadirpekel/storefront/pkg/config"
)

// Manager owns the tracer provider and the metrics of the process.
type Manager struct {
	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	metrics        *Metrics
}

// NewManager initializes tracing and metrics as configured. Disabled
// metrics leave Metrics nil.
func NewManager(ctx context.Context, cfg config.ObservabilityConfig, version string) (*Manager, error) {
	tp, err := NewTracerProvider(ctx, cfg.Tracing, version)
	if err != nil {
		return nil, err
	}
	m := &Manager{tracerProvider: tp}

	if cfg.Metrics.Enabled {
		metrics, err := NewMetrics(cfg.Metrics.Namespace)
		if err != nil {
			return nil, errors.Join(err, m.shutdownTracer(ctx))
		}
		m.metrics = metrics
	}
	return m, nil
}

// Tracer returns a named tracer. It is a no-op tracer on a nil Manager.
func (m *Manager) Tracer(name string) trace.Tracer {
	if m == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// Metrics returns the metrics, or nil when disabled.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Shutdown flushes pending spans and stops the meter provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.shutdownTracer(ctx), m.metrics.Shutdown(ctx))
}

func (m *Manager) shutdownTracer(ctx context.Context) error {
	if s, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return s.Shutdown(ctx)
	}
	return nil
}
