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
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Turn outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Metrics records server metrics through an OpenTelemetry meter exported
// to a private Prometheus registry. All methods are safe on a nil
// receiver, which disables recording.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	turns        metric.Int64Counter
	turnDuration metric.Float64Histogram

	artifacts        metric.Int64Counter
	artifactFailures metric.Int64Counter

	toolStatus   metric.Int64Counter
	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram

	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram
}

// NewMetrics creates the instruments, prefixing every name with namespace.
func NewMetrics(namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultServiceName
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg), otelprom.WithoutScopeInfo())
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(instrumentationScope)

	m := &Metrics{registry: reg, provider: provider}
	name := func(s string) string { return namespace + "_" + s }

	if m.turns, err = meter.Int64Counter(name("turns_total"),
		metric.WithDescription("A2A turns by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create turns counter: %w", err)
	}
	if m.turnDuration, err = meter.Float64Histogram(name("turn_duration_seconds"),
		metric.WithDescription("A2A turn duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create turn duration histogram: %w", err)
	}
	if m.artifacts, err = meter.Int64Counter(name("artifacts_sent_total"),
		metric.WithDescription("Data artifacts sent by category")); err != nil {
		return nil, fmt.Errorf("failed to create artifacts counter: %w", err)
	}
	if m.artifactFailures, err = meter.Int64Counter(name("artifact_failures_total"),
		metric.WithDescription("Data artifacts that failed to send by category")); err != nil {
		return nil, fmt.Errorf("failed to create artifact failures counter: %w", err)
	}
	if m.toolStatus, err = meter.Int64Counter(name("tool_status_updates_total"),
		metric.WithDescription("Working status updates shown for tool calls")); err != nil {
		return nil, fmt.Errorf("failed to create tool status counter: %w", err)
	}
	if m.toolCalls, err = meter.Int64Counter(name("tool_calls_total"),
		metric.WithDescription("Tool calls by tool and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}
	if m.toolDuration, err = meter.Float64Histogram(name("tool_duration_seconds"),
		metric.WithDescription("Tool execution duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter(name("http_requests_total"),
		metric.WithDescription("HTTP requests by method, route and status")); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram(name("http_request_duration_seconds"),
		metric.WithDescription("HTTP request duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	return m, nil
}

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.turns.Add(ctx, 1, attrs)
	m.turnDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordArtifact records a publish attempt for an artifact category.
func (m *Metrics) RecordArtifact(ctx context.Context, category string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("category", category))
	if err != nil {
		m.artifactFailures.Add(ctx, 1, attrs)
		return
	}
	m.artifacts.Add(ctx, 1, attrs)
}

// RecordToolStatus records a working status shown for a tool.
func (m *Metrics) RecordToolStatus(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.toolStatus.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordToolCall records one tool execution.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool), attribute.String("outcome", outcome))
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, d.Seconds(), attrs)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
