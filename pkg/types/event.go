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
package types

import "time"

// EventKind classifies entries in a session's event stream.
type EventKind string

const (
	EventActionStart EventKind = "action_start"
	EventActionEnd   EventKind = "action_end"
	EventTask        EventKind = "task"
	EventReasoning   EventKind = "agent reasoning"
	EventScreen      EventKind = "screen"
	EventWarning     EventKind = "warning"
	EventError       EventKind = "error"
	// EventMessage is agent-to-user text: send message and ask question
	// land here so the progress feed can surface them.
	EventMessage EventKind = "message"
)

// Severity grades an event for filtering and display.
type Severity string

const (
	SeverityDebug Severity = "DEBUG"
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event is one timestamped entry in a session's event stream.
// Message is what the model sees; DisplayMessage, when set, is the
// shorter human-facing form used by progress surfaces. RepeatCount
// counts consecutive identical messages coalesced into this entry.
type Event struct {
	TS             time.Time `json:"ts"`
	Kind           EventKind `json:"kind"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	DisplayMessage string    `json:"display_message,omitempty"`
	RepeatCount    int       `json:"repeat_count,omitempty"`
}

// NewEvent returns an INFO event stamped now.
func NewEvent(kind EventKind, message string) Event {
	return Event{
		TS:       time.Now().UTC(),
		Kind:     kind,
		Severity: SeverityInfo,
		Message:  message,
	}
}

// WithSeverity returns a copy with the severity replaced.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithDisplay returns a copy with the display message set.
func (e Event) WithDisplay(msg string) Event {
	e.DisplayMessage = msg
	return e
}

// Display returns the human-facing text: DisplayMessage when present,
// otherwise Message.
func (e Event) Display() string {
	if e.DisplayMessage != "" {
		return e.DisplayMessage
	}
	return e.Message
}
