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

package artifact

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
)

// Publisher delivers a named artifact to the client.
type Publisher interface {
	AddArtifact(ctx context.Context, parts []a2a.Part, name string) error
}

// Observer is notified of every publish attempt. err is nil on success.
type Observer func(c Category, err error)

// Formatter maps a state map to a category payload, or nil.
type Formatter func(state map[string]any) map[string]any

type entry struct {
	category Category
	format   Formatter
}

// registry lists the categories in streaming order.
var registry = []entry{
	{Products, FormatProductList},
	{Cart, FormatCart},
	{OrderSummary, FormatOrderSummary},
	{Order, FormatOrder},
	{PaymentMethods, FormatPaymentMethods},
	{PaymentMethodSelection, FormatPaymentMethodSelection},
}

func lookup(c Category) (entry, bool) {
	for _, e := range registry {
		if e.category == c {
			return e, true
		}
	}
	return entry{}, false
}

// Streamer publishes each category at most once per turn. It is not safe
// for concurrent use; a turn consumes its events sequentially.
type Streamer struct {
	tracker   *Tracker
	publisher Publisher
	observer  Observer
	sent      map[Category]bool
}

// StreamerOption configures a Streamer.
type StreamerOption func(*Streamer)

// WithObserver registers a publish observer.
func WithObserver(o Observer) StreamerOption {
	return func(s *Streamer) { s.observer = o }
}

// NewStreamer binds a fresh set of send flags to tracker and publisher.
func NewStreamer(tracker *Tracker, publisher Publisher, opts ...StreamerOption) *Streamer {
	s := &Streamer{
		tracker:   tracker,
		publisher: publisher,
		sent:      make(map[Category]bool, len(registry)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sent reports whether the category was published in this turn.
func (s *Streamer) Sent(c Category) bool {
	return s.sent[c]
}

// StreamIfChanged publishes the category when it changed since turn start
// and has not been published yet. It returns true only when an artifact
// went out. Failures are logged and leave the category eligible for a
// later attempt.
func (s *Streamer) StreamIfChanged(ctx context.Context, c Category, state map[string]any) (sent bool) {
	if s.sent[c] {
		return false
	}
	e, ok := lookup(c)
	if !ok {
		slog.Warn("Unknown artifact category", "category", c)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			slog.Error("Failed to stream artifact", "category", c, "error", err)
			s.observe(c, err)
			sent = false
		}
	}()

	if !s.tracker.Changed(c, state) {
		return false
	}
	payload := e.format(state)
	if payload == nil {
		slog.Debug("Artifact changed but has nothing to show", "category", c)
		return false
	}

	part := a2a.DataPart{
		Data:     payload,
		Metadata: map[string]any{"mimeType": "application/json"},
	}
	if err := s.publisher.AddArtifact(ctx, []a2a.Part{part}, string(c)); err != nil {
		slog.Error("Failed to stream artifact", "category", c, "error", err)
		s.observe(c, err)
		return false
	}

	s.sent[c] = true
	s.observe(c, nil)
	slog.Debug("Streamed artifact", "category", c)
	return true
}

// StreamAll tries every category in order and returns the ones published.
func (s *Streamer) StreamAll(ctx context.Context, state map[string]any) []Category {
	var out []Category
	for _, e := range registry {
		if s.StreamIfChanged(ctx, e.category, state) {
			out = append(out, e.category)
		}
	}
	return out
}

// EnsureAllSent is the end-of-turn sweep against the final state.
func (s *Streamer) EnsureAllSent(ctx context.Context, finalState map[string]any) []Category {
	return s.StreamAll(ctx, finalState)
}

func (s *Streamer) observe(c Category, err error) {
	if s.observer != nil {
		s.observer(c, err)
	}
}
