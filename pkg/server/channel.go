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

package server

import (
	"context"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
)

// eventWriter is the part of eventqueue.Queue a turn writes to.
type eventWriter interface {
	Write(ctx context.Context, event a2a.Event) error
}

// taskChannel publishes the events of one A2A task. It owns the streamed
// text artifact and turns status changes into TaskStatusUpdateEvents.
type taskChannel struct {
	reqCtx       *a2asrv.RequestContext
	queue        eventWriter
	artifactName string

	// responseID is set once the first text chunk went out.
	responseID a2a.ArtifactID
	completed  bool
}

func newTaskChannel(reqCtx *a2asrv.RequestContext, queue eventWriter, artifactName string) *taskChannel {
	return &taskChannel{reqCtx: reqCtx, queue: queue, artifactName: artifactName}
}

// Enqueue announces a new task.
func (c *taskChannel) Enqueue(ctx context.Context) error {
	ev := a2a.NewStatusUpdateEvent(c.reqCtx, a2a.TaskStateSubmitted, nil)
	if err := c.queue.Write(ctx, ev); err != nil {
		return fmt.Errorf("failed to write submitted event: %w", err)
	}
	return nil
}

// SetStatus moves the task to state with an optional agent message.
func (c *taskChannel) SetStatus(ctx context.Context, state a2a.TaskState, text string, final bool) error {
	var msg *a2a.Message
	if text != "" {
		msg = a2a.NewMessageForTask(a2a.MessageRoleAgent, c.reqCtx, a2a.TextPart{Text: text})
	}
	ev := a2a.NewStatusUpdateEvent(c.reqCtx, state, msg)
	ev.Final = final
	if err := c.queue.Write(ctx, ev); err != nil {
		return fmt.Errorf("failed to write %s status: %w", state, err)
	}
	return nil
}

// AddArtifact publishes a complete named artifact.
func (c *taskChannel) AddArtifact(ctx context.Context, parts []a2a.Part, name string) error {
	ev := a2a.NewArtifactEvent(c.reqCtx, parts...)
	ev.Artifact.Name = name
	ev.LastChunk = true
	if err := c.queue.Write(ctx, ev); err != nil {
		return fmt.Errorf("failed to write %s artifact: %w", name, err)
	}
	return nil
}

// AppendText streams a chunk of the text response. The first chunk
// creates the artifact, later ones append to it.
func (c *taskChannel) AppendText(ctx context.Context, chunk string) error {
	if chunk == "" {
		return nil
	}
	part := a2a.TextPart{Text: chunk}

	var ev *a2a.TaskArtifactUpdateEvent
	if c.responseID == "" {
		ev = a2a.NewArtifactEvent(c.reqCtx, part)
		ev.Artifact.Name = c.artifactName
	} else {
		ev = a2a.NewArtifactUpdateEvent(c.reqCtx, c.responseID, part)
	}
	if err := c.queue.Write(ctx, ev); err != nil {
		return fmt.Errorf("failed to write response chunk: %w", err)
	}
	if c.responseID == "" {
		c.responseID = ev.Artifact.ID
	}
	return nil
}

// Complete closes the text artifact, if any, and marks the task
// completed. Calling it again after success is a no-op.
func (c *taskChannel) Complete(ctx context.Context) error {
	if c.completed {
		return nil
	}
	if c.responseID != "" {
		ev := a2a.NewArtifactUpdateEvent(c.reqCtx, c.responseID)
		ev.LastChunk = true
		if err := c.queue.Write(ctx, ev); err != nil {
			return fmt.Errorf("failed to close response artifact: %w", err)
		}
		// The artifact is closed even if the status write below fails.
		c.responseID = ""
	}
	if err := c.SetStatus(ctx, a2a.TaskStateCompleted, "", true); err != nil {
		return err
	}
	c.completed = true
	return nil
}

// Fail ends the task with the error text as the status message.
func (c *taskChannel) Fail(ctx context.Context, cause error) error {
	return c.SetStatus(ctx, a2a.TaskStateFailed, "Error: "+cause.Error(), true)
}
