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

// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the storefront server.
package observability

// Span names.
const (
	SpanTurn        = "storefront.turn"
	SpanHTTPRequest = "http.request"
)

// Span attribute keys.
const (
	AttrTaskID           = "a2a.task_id"
	AttrContextID        = "a2a.context_id"
	AttrUserID           = "storefront.user_id"
	AttrOutcome          = "storefront.outcome"
	AttrArtifacts        = "storefront.artifacts"
	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"
	AttrErrorType        = "error.type"
)

const (
	DefaultServiceName = "storefront"
	DefaultMetricsPath = "/metrics"

	instrumentationScope = "github.com/kadirpekel/storefront"
)
