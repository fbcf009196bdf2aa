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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

func TestLogAndSnapshot(t *testing.T) {
	s := NewStream("sess", Config{})

	i0 := s.Log(types.EventTask, "task created")
	i1 := s.Log(types.EventReasoning, "thinking about step 1")
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)

	snap := s.PromptSnapshot(true)
	assert.True(t, strings.HasPrefix(snap, "Recent Event:\n"), "no head summary yet")
	assert.Contains(t, snap, "[task]: task created")
	assert.Contains(t, snap, "[agent reasoning]: thinking about step 1")

	lines := strings.Split(strings.TrimSpace(snap), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.Contains(lines[1], "task created"), "log order preserved")
}

func TestLogSeverityDefaults(t *testing.T) {
	s := NewStream("sess", Config{})
	s.Log(types.EventError, "boom")
	s.Log(types.EventWarning, "careful")
	s.Log(types.EventTask, "fine", WithSeverity(types.SeverityDebug))

	evs := s.Events()
	require.Len(t, evs, 3)
	assert.Equal(t, types.SeverityError, evs[0].Severity)
	assert.Equal(t, types.SeverityWarn, evs[1].Severity)
	assert.Equal(t, types.SeverityDebug, evs[2].Severity)
}

func TestRepeatCoalescing(t *testing.T) {
	s := NewStream("sess", Config{})

	i0 := s.Log(types.EventActionEnd, "exit 0")
	i1 := s.Log(types.EventActionEnd, "exit 0")
	i2 := s.Log(types.EventActionEnd, "exit 0")
	assert.Equal(t, i0, i1)
	assert.Equal(t, i0, i2)
	assert.Equal(t, 1, s.TailLen())

	snap := s.PromptSnapshot(false)
	assert.Contains(t, snap, "exit 0 [x3]")

	// A different kind with the same message does not coalesce.
	s.Log(types.EventTask, "exit 0")
	assert.Equal(t, 2, s.TailLen())
}

func TestExternalizationBoundary(t *testing.T) {
	dir := t.TempDir()
	s := NewStream("sess", Config{})
	s.SetScratchDir(dir)

	// Exactly at the threshold stays inline.
	atLimit := strings.Repeat("a", DefaultExternalizeAt)
	s.Log(types.EventActionEnd, atLimit)
	evs := s.Events()
	assert.Equal(t, atLimit, evs[0].Message)

	// One past the threshold moves to a file.
	long := strings.Repeat("error connecting to database shard seven\n", 250)
	require.Greater(t, len(long), DefaultExternalizeAt)
	s.Log(types.EventActionEnd, long)
	evs = s.Events()
	msg := evs[1].Message
	assert.Contains(t, msg, "full text saved to")
	assert.Contains(t, msg, "Keywords:")
	assert.Contains(t, msg, "database")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	saved, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, long, string(saved))
}

func TestExternalizationSkips(t *testing.T) {
	long := strings.Repeat("x y z\n", 2000)

	// No scratch dir configured: inline.
	s := NewStream("sess", Config{})
	s.Log(types.EventActionEnd, long)
	assert.Equal(t, long, s.Events()[0].Message)

	// Streaming readers are exempt even with a scratch dir.
	s = NewStream("sess", Config{})
	s.SetScratchDir(t.TempDir())
	s.Log(types.EventActionEnd, long, WithAction("stream read"))
	assert.Equal(t, long, s.Events()[0].Message)
	s.Log(types.EventActionEnd, long+"!", WithAction("grep"))
	assert.Equal(t, long+"!", s.Events()[1].Message)
}

func TestTailKeepCoercion(t *testing.T) {
	s := NewStream("sess", Config{SummarizeAt: 10, TailKeep: 9})
	assert.Equal(t, 5, s.cfg.TailKeep)

	s = NewStream("sess", Config{SummarizeAt: 30, TailKeep: 15})
	assert.Equal(t, 15, s.cfg.TailKeep)

	s = NewStream("sess", Config{})
	assert.Equal(t, DefaultSummarizeAt, s.cfg.SummarizeAt)
	assert.Equal(t, DefaultTailKeep, s.cfg.TailKeep)
}

func TestClearResets(t *testing.T) {
	s := NewStream("sess", Config{})
	s.Log(types.EventTask, "one")
	s.Log(types.EventTask, "two")
	s.Clear()

	assert.Equal(t, 0, s.TailLen())
	assert.Empty(t, s.HeadSummary())
	assert.Equal(t, "Recent Event:\n", s.PromptSnapshot(true))

	// Indexes keep growing across a clear.
	idx := s.Log(types.EventTask, "three")
	assert.Equal(t, 2, idx)
}
