// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package types holds the shared data model: triggers, events, tasks,
// plan steps, todos, and the process-wide agent properties. It exists
// so the runtime packages can depend on the model without depending on
// each other.
package types

import (
	"strings"
	"time"
)

// SessionChat is the session id of the standing conversation with the
// user. Chat triggers and chat events share this id.
const SessionChat = "chat"

// Payload keys with runtime meaning.
const (
	PayloadParentActionID = "parent_action_id"
	PayloadGUIMode        = "gui_mode"
	PayloadSimpleTask     = "simple_task"
)

// Trigger is one unit of scheduled future work. FireAt is a Unix
// timestamp in seconds (fractional seconds allowed); lower Priority
// values are more urgent.
type Trigger struct {
	FireAt                float64        `json:"fire_at"`
	Priority              int            `json:"priority"`
	NextActionDescription string         `json:"next_action_description"`
	SessionID             string         `json:"session_id"`
	Payload               map[string]any `json:"payload,omitempty"`
}

// NewTrigger returns a trigger firing at t with the given priority.
func NewTrigger(sessionID, description string, t time.Time, priority int) Trigger {
	return Trigger{
		FireAt:                float64(t.UnixNano()) / float64(time.Second),
		Priority:              priority,
		NextActionDescription: description,
		SessionID:             sessionID,
	}
}

// FireTime converts FireAt back to a time.Time.
func (t Trigger) FireTime() time.Time {
	sec := int64(t.FireAt)
	nsec := int64((t.FireAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Due reports whether the trigger has reached its fire time.
func (t Trigger) Due(now time.Time) bool {
	return t.FireAt <= float64(now.UnixNano())/float64(time.Second)
}

// Before orders triggers by (FireAt, Priority) ascending, the queue
// ordering.
func (t Trigger) Before(other Trigger) bool {
	if t.FireAt != other.FireAt {
		return t.FireAt < other.FireAt
	}
	return t.Priority < other.Priority
}

// Merge folds older same-session triggers into t and returns the
// result: the minimum priority and fire time win, descriptions are
// joined with a blank line in first-seen order with duplicates
// dropped, and payloads merge shallowly with later values winning.
// The older triggers come first in the joined description; t's own
// description lands last.
func (t Trigger) Merge(older ...Trigger) Trigger {
	merged := t
	seen := make(map[string]bool)
	var parts []string
	add := func(desc string) {
		d := strings.TrimSpace(desc)
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		parts = append(parts, d)
	}
	payload := make(map[string]any)
	for _, o := range older {
		if o.Priority < merged.Priority {
			merged.Priority = o.Priority
		}
		if o.FireAt < merged.FireAt {
			merged.FireAt = o.FireAt
		}
		add(o.NextActionDescription)
		for k, v := range o.Payload {
			payload[k] = v
		}
	}
	add(t.NextActionDescription)
	for k, v := range t.Payload {
		payload[k] = v
	}
	merged.NextActionDescription = strings.Join(parts, "\n\n")
	if len(payload) > 0 {
		merged.Payload = payload
	}
	return merged
}

// GUIMode reports whether the trigger requests the screen-aware loop.
func (t Trigger) GUIMode() bool {
	if t.Payload == nil {
		return false
	}
	b, ok := t.Payload[PayloadGUIMode].(bool)
	return ok && b
}

// SimpleMode reports whether the trigger runs the reduced task loop
// without todo management.
func (t Trigger) SimpleMode() bool {
	if t.Payload == nil {
		return false
	}
	b, ok := t.Payload[PayloadSimpleTask].(bool)
	return ok && b
}

// ParentActionID returns the id of the action run that scheduled this
// trigger, when one did.
func (t Trigger) ParentActionID() string {
	if t.Payload == nil {
		return ""
	}
	s, _ := t.Payload[PayloadParentActionID].(string)
	return s
}
