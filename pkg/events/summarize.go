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
package events

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// scheduleFold snapshots the oldest tail entries and hands them to a
// detached goroutine. Caller holds s.mu. Snapshotting here, before the
// lock is released, pins the cutoff to the trigger point: entries
// logged while the fold awaits the model are past the cutoff and
// survive untouched.
func (s *Stream) scheduleFold() {
	if s.cfg.Summarizer == nil || s.summarizing || len(s.tail) < s.cfg.SummarizeAt {
		return
	}
	cutoff := len(s.tail) - s.cfg.TailKeep
	if cutoff <= 0 {
		return
	}
	chunk := make([]entry, cutoff)
	copy(chunk, s.tail[:cutoff])
	s.summarizing = true
	go s.fold(s.head, chunk, cutoff, s.generation)
}

// fold performs the LLM call without holding the stream lock, then
// re-acquires it and drops exactly cutoff leading entries. An error or
// empty summary leaves the stream unchanged; a Clear during the await
// discards the result.
func (s *Stream) fold(prev string, chunk []entry, cutoff int, gen uint64) {
	var b strings.Builder
	for _, e := range chunk {
		b.WriteString(formatLine(e.ev))
		b.WriteByte('\n')
	}

	summary, err := s.cfg.Summarizer.Summarize(context.Background(), prev, b.String())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summarizing = false
	if err != nil {
		s.cfg.Logger.Warn("event fold failed, keeping stream unchanged",
			zap.String("session_id", s.sessionID),
			zap.Error(err))
		return
	}
	if strings.TrimSpace(summary) == "" {
		return
	}
	if gen != s.generation || len(s.tail) < cutoff {
		return
	}
	s.head = summary
	s.tail = append([]entry(nil), s.tail[cutoff:]...)
}
