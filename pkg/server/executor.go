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

// Package server exposes the shopping agent over A2A.
//
// The Executor runs one agent turn per A2A message. While the runner's
// events stream by, it forwards text to a single response artifact, shows
// a working status per tool call and publishes a data artifact for every
// session state category the turn changed (products, cart, order summary,
// order, payment methods, payment method selection).
//
//	r, _ := runner.New(runner.Config{AppName: "shopping_assistant", Agent: a, SessionService: svc})
//	exec := server.NewExecutor(server.ExecutorConfig{Runner: r})
//	srv := server.New(cfg, exec, server.WithCatalog(store))
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kadirpekel/storefront/pkg/agent"
	"github.com/kadirpekel/storefront/pkg/artifact"
	"github.com/kadirpekel/storefront/pkg/auth"
	"github.com/kadirpekel/storefront/pkg/observability"
	"github.com/kadirpekel/storefront/pkg/runner"
	"github.com/kadirpekel/storefront/pkg/session"
)

// State keys seeded from an uploaded image before the run.
const (
	StateKeyImageBytes    = "current_image_bytes"
	StateKeyImageMimeType = "current_image_mime_type"
)

// ErrCancelNotSupported is returned by Cancel.
var ErrCancelNotSupported = fmt.Errorf("cancellation is not supported: %w", a2a.ErrUnsupportedOperation)

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Runner    *runner.Runner
	RunConfig agent.RunConfig

	// ArtifactName names the streamed text artifact. Default: response
	ArtifactName string

	// StatusMessage is the working status shown before the run.
	StatusMessage string

	// DefaultUserID is used when neither auth claims nor message metadata
	// name a user. Default: a2a_user
	DefaultUserID string

	// MaxUploadBytes and AllowedMimeTypes constrain attached images.
	MaxUploadBytes   int
	AllowedMimeTypes []string

	Metrics *observability.Metrics
	Tracer  trace.Tracer
}

// Executor implements a2asrv.AgentExecutor for the shopping agent.
//
// Event translation:
//   - New task: TaskStatusUpdateEvent with TaskStateSubmitted
//   - Before the run: TaskStateWorking with the configured status message
//   - Tool calls: TaskStateWorking with a per-tool status message
//   - Text: one artifact, appended chunk by chunk
//   - Changed state categories: one named data artifact each
//   - Success: LastChunk on the text artifact, then TaskStateCompleted
//   - Any error: TaskStateFailed carrying the error text
type Executor struct {
	runner    *runner.Runner
	runConfig agent.RunConfig
	sessions  session.Service
	appName   string

	artifactName  string
	statusMessage string
	defaultUserID string
	limits        uploadLimits

	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewExecutor creates an executor. It panics without a runner.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Runner == nil {
		panic("server: ExecutorConfig.Runner is required")
	}
	e := &Executor{
		runner:        cfg.Runner,
		runConfig:     cfg.RunConfig,
		sessions:      cfg.Runner.SessionService(),
		appName:       cfg.Runner.AppName(),
		artifactName:  cfg.ArtifactName,
		statusMessage: cfg.StatusMessage,
		defaultUserID: cfg.DefaultUserID,
		limits: uploadLimits{
			MaxBytes:         cfg.MaxUploadBytes,
			AllowedMimeTypes: cfg.AllowedMimeTypes,
		},
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}
	if e.artifactName == "" {
		e.artifactName = "response"
	}
	if e.statusMessage == "" {
		e.statusMessage = DefaultStatusMessage
	}
	if e.defaultUserID == "" {
		e.defaultUserID = "a2a_user"
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("")
	}
	return e
}

// Execute implements a2asrv.AgentExecutor. Turn failures are reported on
// the queue as a failed status; the returned error is non-nil only when
// the queue itself cannot be written.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return e.execute(ctx, reqCtx, queue)
}

func (e *Executor) execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventWriter) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, observability.SpanTurn, trace.WithAttributes(
		attribute.String(observability.AttrTaskID, string(reqCtx.TaskID)),
		attribute.String(observability.AttrContextID, reqCtx.ContextID),
	))
	defer span.End()

	ch := newTaskChannel(reqCtx, queue, e.artifactName)
	t := &turn{
		exec:      e,
		ch:        ch,
		sessionID: reqCtx.ContextID,
		userID:    e.userID(ctx, reqCtx.Message),
	}
	span.SetAttributes(attribute.String(observability.AttrUserID, t.userID))

	err := t.run(ctx, reqCtx)
	outcome := observability.OutcomeCompleted
	if err != nil {
		outcome = observability.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Turn failed", "task", reqCtx.TaskID, "session", t.sessionID, "error", err)
		if werr := ch.Fail(ctx, err); werr != nil {
			e.metrics.RecordTurn(ctx, outcome, time.Since(start))
			return fmt.Errorf("failed to report turn failure: %w (original: %w)", werr, err)
		}
	}
	span.SetAttributes(
		attribute.String(observability.AttrOutcome, outcome),
		attribute.Int(observability.AttrArtifacts, t.artifactsSent),
	)
	e.metrics.RecordTurn(ctx, outcome, time.Since(start))
	return nil
}

// Cancel implements a2asrv.AgentExecutor. Turns cannot be canceled.
func (e *Executor) Cancel(_ context.Context, reqCtx *a2asrv.RequestContext, _ eventqueue.Queue) error {
	slog.Warn("Cancel requested but not supported", "task", reqCtx.TaskID)
	return ErrCancelNotSupported
}

// userID prefers the authenticated subject, then the user_id message
// metadata, then the configured default.
func (e *Executor) userID(ctx context.Context, msg *a2a.Message) string {
	if claims := auth.ClaimsFromContext(ctx); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	if uid := userIDFrom(msg); uid != "" {
		return uid
	}
	return e.defaultUserID
}

// turn is the per-message state of one Execute call. It is never shared.
type turn struct {
	exec      *Executor
	ch        *taskChannel
	userID    string
	sessionID string

	streamer *artifact.Streamer
	status   *statusNotifier

	// sawPartial is set while the current model response streams chunks,
	// so its aggregated non-partial copy is not sent twice.
	sawPartial    bool
	artifactsSent int
}

func (t *turn) run(ctx context.Context, reqCtx *a2asrv.RequestContext) error {
	e := t.exec
	if reqCtx.StoredTask == nil {
		if err := t.ch.Enqueue(ctx); err != nil {
			return err
		}
	}

	in, err := parseMessage(reqCtx.Message, e.limits)
	if err != nil {
		return err
	}

	if err := t.ch.SetStatus(ctx, a2a.TaskStateWorking, e.statusMessage, false); err != nil {
		return err
	}

	sess, err := t.prepareSession(ctx)
	if err != nil {
		return err
	}
	if in.Image != nil {
		if err := t.seedImage(ctx, sess, in.Image); err != nil {
			return err
		}
	}

	initial, err := t.readState(ctx)
	if err != nil {
		return err
	}
	t.streamer = artifact.NewStreamer(artifact.NewTracker(initial), t.ch,
		artifact.WithObserver(func(c artifact.Category, err error) {
			if err == nil {
				t.artifactsSent++
			}
			e.metrics.RecordArtifact(ctx, string(c), err)
		}))
	t.status = &statusNotifier{send: func(ctx context.Context, text string) error {
		return t.ch.SetStatus(ctx, a2a.TaskStateWorking, text, false)
	}}

	for ev, err := range e.runner.Run(ctx, t.userID, t.sessionID, buildContent(in), e.runConfig) {
		if err != nil {
			return fmt.Errorf("agent run failed: %w", err)
		}
		if err := t.handleEvent(ctx, ev); err != nil {
			return err
		}
	}

	final, err := t.readState(ctx)
	if err != nil {
		return err
	}
	t.streamer.EnsureAllSent(ctx, final)

	t.complete(ctx)
	return nil
}

func (t *turn) handleEvent(ctx context.Context, ev *agent.Event) error {
	if ev == nil {
		return nil
	}

	if ev.Partial {
		if text := ev.TextContent(); text != "" {
			t.sawPartial = true
			return t.ch.AppendText(ctx, text)
		}
		// Partial events are never persisted, so state cannot have moved.
		return nil
	}

	if ev.Author != agent.AuthorUser && !t.sawPartial {
		if err := t.ch.AppendText(ctx, ev.TextContent()); err != nil {
			return err
		}
	}
	t.sawPartial = false

	for _, tc := range ev.ToolCalls {
		sent, err := t.status.notify(ctx, tc.Name)
		if err != nil {
			return err
		}
		if sent {
			t.exec.metrics.RecordToolStatus(ctx, tc.Name)
		}
	}

	// A missed check is caught up by the final sweep.
	state, err := t.readState(ctx)
	if err != nil {
		slog.Warn("Skipping artifact check", "session", t.sessionID, "event", ev.ID, "error", err)
		return nil
	}
	if ev.IsFinalResponse() {
		t.streamer.StreamIfChanged(ctx, artifact.OrderSummary, state)
		t.streamer.StreamIfChanged(ctx, artifact.Order, state)
		return nil
	}
	t.streamer.StreamAll(ctx, state)
	return nil
}

// complete marks the task done, retrying once. A second failure is
// logged and dropped; the client already has every artifact.
func (t *turn) complete(ctx context.Context) {
	err := t.ch.Complete(ctx)
	if err == nil {
		return
	}
	slog.Warn("Failed to complete task, retrying", "session", t.sessionID, "error", err)
	if err := t.ch.Complete(ctx); err != nil {
		slog.Error("Failed to complete task", "session", t.sessionID, "error", err)
	}
}

func (t *turn) prepareSession(ctx context.Context) (session.Session, error) {
	e := t.exec
	resp, err := e.sessions.Get(ctx, &session.GetRequest{
		AppName:         e.appName,
		UserID:          t.userID,
		SessionID:       t.sessionID,
		NumRecentEvents: 1,
	})
	if err == nil {
		return resp.Session, nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		slog.Warn("Failed to get session, creating a new one", "session", t.sessionID, "error", err)
	}

	created, err := e.sessions.Create(ctx, &session.CreateRequest{
		AppName:   e.appName,
		UserID:    t.userID,
		SessionID: t.sessionID,
		State:     make(map[string]any),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", t.sessionID, err)
	}
	return created.Session, nil
}

// seedImage stores the upload in session state so image tools can read it.
func (t *turn) seedImage(ctx context.Context, sess session.Session, img *Image) error {
	ev := agent.NewEvent("upload-" + t.sessionID)
	ev.Author = agent.AuthorUser
	ev.Actions.StateDelta[StateKeyImageBytes] = img.Data
	ev.Actions.StateDelta[StateKeyImageMimeType] = img.MimeType
	if err := t.exec.sessions.AppendEvent(ctx, sess, ev); err != nil {
		return fmt.Errorf("failed to store uploaded image: %w", err)
	}
	slog.Debug("Stored uploaded image", "session", t.sessionID, "bytes", len(img.Data), "mime", img.MimeType)
	return nil
}

// readState returns a point-in-time copy of the session state.
func (t *turn) readState(ctx context.Context) (map[string]any, error) {
	e := t.exec
	resp, err := e.sessions.Get(ctx, &session.GetRequest{
		AppName:         e.appName,
		UserID:          t.userID,
		SessionID:       t.sessionID,
		NumRecentEvents: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	return agent.StateMap(resp.Session.State()), nil
}

// buildContent turns parsed input into the user message of the run. The
// image travels inline so the model can see it.
func buildContent(in *userInput) *agent.Content {
	content := &agent.Content{Role: a2a.MessageRoleUser}
	if in.Text != "" {
		content.AddText(in.Text)
	}
	if in.Image != nil {
		content.AddPart(a2a.FilePart{File: a2a.FileBytes{
			FileMeta: a2a.FileMeta{MimeType: in.Image.MimeType, Name: in.Image.Name},
			Bytes:    base64.StdEncoding.EncodeToString(in.Image.Data),
		}})
	}
	if len(content.Parts) == 0 {
		content.AddText("")
	}
	return content
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
