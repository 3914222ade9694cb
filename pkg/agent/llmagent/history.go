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

package llmagent

import (
	"encoding/json"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/storefront/pkg/agent"
)

// buildMessages turns the session history into model messages. When a
// token budget is set, whole turns are dropped from the front until the
// rest fits. A turn starts at a user-authored event, so tool calls and
// their results are never split.
func (a *llmAgent) buildMessages(ctx agent.InvocationContext) []*a2a.Message {
	sess := ctx.Session()
	if sess == nil {
		return nil
	}

	var events []*agent.Event
	for ev := range sess.Events().All() {
		if ev.Partial || ev.Message == nil || len(ev.Message.Parts) == 0 {
			continue
		}
		events = append(events, ev)
	}

	start := 0
	if a.counter != nil && a.historyTokens > 0 {
		start = a.trimStart(events)
	}

	messages := make([]*a2a.Message, 0, len(events)-start)
	for _, ev := range events[start:] {
		messages = append(messages, ev.Message)
	}
	return messages
}

func (a *llmAgent) trimStart(events []*agent.Event) int {
	total := 0
	start := len(events)
	for i := len(events) - 1; i >= 0; i-- {
		total += a.countMessage(events[i].Message)
		if events[i].Author != agent.AuthorUser || len(events[i].ToolResults) > 0 {
			continue
		}
		if total > a.historyTokens && start < len(events) {
			break
		}
		start = i
	}
	if start == len(events) {
		return 0
	}
	return start
}

// imageTokens approximates the cost of one inline image.
const imageTokens = 258

func (a *llmAgent) countMessage(msg *a2a.Message) int {
	n := 3
	for _, p := range msg.Parts {
		switch part := p.(type) {
		case a2a.TextPart:
			n += a.counter.Count(part.Text)
		case a2a.DataPart:
			data, _ := json.Marshal(part.Data)
			n += a.counter.Count(string(data))
		case a2a.FilePart:
			n += imageTokens
		}
	}
	return n
}
