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

// Package events implements the per-session event stream: an append log
// with a bounded recent tail and an LLM-compacted head summary. Streams
// are created through a Manager keyed by session id; the Manager fans
// every logged event out to registered observers for live progress
// surfaces.
package events

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

const (
	// MinBuffer is the minimum gap between the summarization trigger
	// point and the kept tail. TailKeep values that leave less room are
	// coerced down so a fold always removes at least this many entries.
	MinBuffer = 5

	// DefaultSummarizeAt is the tail length that schedules a fold.
	DefaultSummarizeAt = 30

	// DefaultTailKeep is how many newest entries a fold leaves inline.
	DefaultTailKeep = 15

	// DefaultExternalizeAt is the message length above which the full
	// text moves to a scratch file and a pointer replaces it.
	DefaultExternalizeAt = 8000

	keywordCount = 8
)

// streamReaders are actions that already consume externalized files.
// Their output stays inline so reading a long file does not externalize
// it again.
var streamReaders = map[string]bool{
	"stream read": true,
	"grep":        true,
}

// Summarizer folds a formatted chunk of events into the running head
// summary. The agent wires the LLM gateway in; tests use fakes.
type Summarizer interface {
	Summarize(ctx context.Context, previous, chunk string) (string, error)
}

// Config tunes a Stream. Zero values take the defaults above.
type Config struct {
	SummarizeAt   int
	TailKeep      int
	ExternalizeAt int
	Summarizer    Summarizer
	Logger        *zap.Logger

	// OnEvent, when set, receives every logged event after the stream
	// lock is released. The Manager uses it for observer fan-out.
	OnEvent func(sessionID string, ev types.Event)
}

func (c Config) withDefaults() Config {
	if c.SummarizeAt <= 0 {
		c.SummarizeAt = DefaultSummarizeAt
	}
	if c.TailKeep <= 0 {
		c.TailKeep = DefaultTailKeep
	}
	if c.TailKeep+MinBuffer > c.SummarizeAt {
		c.TailKeep = c.SummarizeAt - MinBuffer
		if c.TailKeep < 0 {
			c.TailKeep = 0
		}
	}
	if c.ExternalizeAt <= 0 {
		c.ExternalizeAt = DefaultExternalizeAt
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// entry pairs an event with its stable log index.
type entry struct {
	ev  types.Event
	idx int
}

// Stream is one session's event log. All exported methods are safe for
// concurrent use; the lock is never held across an LLM call.
type Stream struct {
	sessionID string
	cfg       Config

	mu          sync.Mutex
	head        string
	tail        []entry
	next        int
	scratchDir  string
	summarizing bool
	generation  uint64
}

// NewStream creates a stream for sessionID.
func NewStream(sessionID string, cfg Config) *Stream {
	return &Stream{sessionID: sessionID, cfg: cfg.withDefaults()}
}

// SessionID returns the owning session id.
func (s *Stream) SessionID() string { return s.sessionID }

// SetScratchDir points externalization at the active task's temp dir.
// An empty dir disables externalization.
func (s *Stream) SetScratchDir(dir string) {
	s.mu.Lock()
	s.scratchDir = dir
	s.mu.Unlock()
}

// LogOption adjusts one Log call.
type LogOption func(*logOptions)

type logOptions struct {
	severity types.Severity
	display  string
	action   string
}

// WithSeverity overrides the severity derived from the event kind.
func WithSeverity(sev types.Severity) LogOption {
	return func(o *logOptions) { o.severity = sev }
}

// WithDisplay sets the short human-facing message.
func WithDisplay(msg string) LogOption {
	return func(o *logOptions) { o.display = msg }
}

// WithAction names the action that produced the message, so output from
// streaming readers is exempt from externalization.
func WithAction(name string) LogOption {
	return func(o *logOptions) { o.action = name }
}

func defaultSeverity(kind types.EventKind) types.Severity {
	switch kind {
	case types.EventError:
		return types.SeverityError
	case types.EventWarning:
		return types.SeverityWarn
	default:
		return types.SeverityInfo
	}
}

// Log appends an event and returns its index. Oversized messages are
// externalized to the scratch dir first. A message identical to the
// newest tail entry (same kind) bumps that entry's repeat count instead
// of appending and returns the existing index. Crossing the summarize
// threshold schedules an asynchronous fold.
func (s *Stream) Log(kind types.EventKind, message string, opts ...LogOption) int {
	o := logOptions{severity: defaultSeverity(kind)}
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	message = s.externalize(message, o.action)

	if n := len(s.tail); n > 0 {
		last := &s.tail[n-1]
		if last.ev.Kind == kind && last.ev.Message == message {
			last.ev.RepeatCount++
			last.ev.TS = time.Now().UTC()
			ev, idx := last.ev, last.idx
			s.mu.Unlock()
			s.emit(ev)
			return idx
		}
	}

	ev := types.Event{
		TS:             time.Now().UTC(),
		Kind:           kind,
		Severity:       o.severity,
		Message:        message,
		DisplayMessage: o.display,
		RepeatCount:    1,
	}
	idx := s.next
	s.next++
	s.tail = append(s.tail, entry{ev: ev, idx: idx})
	s.scheduleFold()
	s.mu.Unlock()

	s.emit(ev)
	return idx
}

// externalize swaps an oversized message for a pointer to a scratch
// file. Caller holds s.mu. Writing the full text is preferred over
// truncation: the agent can still read it with a streaming action.
func (s *Stream) externalize(message, actionName string) string {
	if len(message) <= s.cfg.ExternalizeAt || s.scratchDir == "" || streamReaders[actionName] {
		return message
	}
	path := filepath.Join(s.scratchDir, fmt.Sprintf("event_%06d.txt", s.next))
	if err := os.WriteFile(path, []byte(message), 0o644); err != nil {
		s.cfg.Logger.Warn("event externalization failed",
			zap.String("session_id", s.sessionID),
			zap.Error(err))
		return message
	}
	pointer := fmt.Sprintf("Output too long to keep inline (%d chars); full text saved to %s.", len(message), path)
	if kws := ExtractKeywords(message, keywordCount); len(kws) > 0 {
		pointer += " Keywords: " + strings.Join(kws, ", ") + "."
	}
	pointer += " Use 'stream read' or 'grep' on that file to inspect it."
	return pointer
}

// PromptSnapshot renders the stream for prompt inclusion: the head
// summary (when asked for and present) followed by the tail, one line
// per entry as "HH:MM:SS [kind]: message [xN]".
func (s *Stream) PromptSnapshot(includeSummary bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if includeSummary && s.head != "" {
		b.WriteString("Summary of folded event stream:\n")
		b.WriteString(s.head)
		b.WriteString("\n\n")
	}
	b.WriteString("Recent Event:\n")
	for _, e := range s.tail {
		b.WriteString(formatLine(e.ev))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatLine(ev types.Event) string {
	line := fmt.Sprintf("%s [%s]: %s", ev.TS.UTC().Format("15:04:05"), ev.Kind, ev.Message)
	if ev.RepeatCount > 1 {
		line += fmt.Sprintf(" [x%d]", ev.RepeatCount)
	}
	return line
}

// Clear resets both the head summary and the tail. A fold in flight
// when Clear runs discards its result.
func (s *Stream) Clear() {
	s.mu.Lock()
	s.head = ""
	s.tail = nil
	s.generation++
	s.mu.Unlock()
}

// HeadSummary returns the current compacted head.
func (s *Stream) HeadSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}

// TailLen returns the number of inline entries.
func (s *Stream) TailLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tail)
}

// Events returns a copy of the tail in log order.
func (s *Stream) Events() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Event, len(s.tail))
	for i, e := range s.tail {
		out[i] = e.ev
	}
	return out
}

func (s *Stream) emit(ev types.Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(s.sessionID, ev)
	}
}
