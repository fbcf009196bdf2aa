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
package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

var _ llm.PromptSink = (*Log)(nil)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func TestReplayFoldsUpserts(t *testing.T) {
	l, _ := newTestLog(t)

	require.NoError(t, l.AppendPrompt(PromptLog{
		Datetime: Stamp(time.Now()),
		Input:    PromptInput{SystemPrompt: "sys", UserPrompt: "usr"},
		Output:   "out",
		Provider: "anthropic",
		Status:   "success",
	}))

	require.NoError(t, l.UpsertActionHistory(ActionHistory{
		RunID: "r1", SessionID: "T1", Name: "send email",
		ActionType: "atomic", Type: "atomic", Status: RunStatusRunning,
		StartedAt: Stamp(time.Now()),
	}))
	require.NoError(t, l.UpsertActionHistory(ActionHistory{
		RunID: "r1", SessionID: "T1", Name: "send email",
		ActionType: "atomic", Type: "atomic", Status: RunStatusSuccess,
		StartedAt: Stamp(time.Now()), EndedAt: Stamp(time.Now()),
		Outputs: map[string]any{"sent": true},
	}))

	require.NoError(t, l.UpsertTaskLog(TaskLog{
		TaskID: "t1", Name: "demo", Status: "running",
	}))
	require.NoError(t, l.UpsertTaskLog(TaskLog{
		TaskID: "t1", Name: "demo", Status: "completed", Results: "done",
	}))

	state, err := l.Replay()
	require.NoError(t, err)
	assert.Len(t, state.Prompts, 1)
	assert.Equal(t, "anthropic", state.Prompts[0].Provider)

	require.Contains(t, state.Actions, "r1")
	assert.Equal(t, RunStatusSuccess, state.Actions["r1"].Status)
	assert.Equal(t, true, state.Actions["r1"].Outputs["sent"])

	require.Contains(t, state.Tasks, "t1")
	assert.Equal(t, "completed", state.Tasks["t1"].Status)
	assert.Equal(t, "done", state.Tasks["t1"].Results)
}

func TestReplaySkipsTornLines(t *testing.T) {
	l, dir := newTestLog(t)
	require.NoError(t, l.UpsertTaskLog(TaskLog{TaskID: "t1", Status: "running"}))

	// Simulate a torn write.
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"entry_type":"task_log","task_id":"t2"`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	state, err := l.Replay()
	require.NoError(t, err)
	assert.Len(t, state.Tasks, 1)
	assert.Contains(t, state.Tasks, "t1")
}

func TestRecordPromptPersists(t *testing.T) {
	l, _ := newTestLog(t)

	l.RecordPrompt(llm.PromptRecord{
		TaskID:       "t1",
		CallType:     "reasoning",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		System:       "sys",
		User:         "usr",
		Response:     "resp",
		InputTokens:  10,
		OutputTokens: 3,
		CreatedAt:    time.Now(),
	})

	state, err := l.Replay()
	require.NoError(t, err)
	require.Len(t, state.Prompts, 1)
	rec := state.Prompts[0]
	assert.Equal(t, "sys", rec.Input.SystemPrompt)
	assert.Equal(t, "resp", rec.Output)
	assert.Equal(t, "t1", rec.Config["task_id"])
	assert.Equal(t, "reasoning", rec.Config["call_type"])
	assert.Equal(t, 10, rec.TokenCountInput)
}

func TestCompactArchivesAndRewrites(t *testing.T) {
	l, dir := newTestLog(t)

	require.NoError(t, l.AppendPrompt(PromptLog{Output: "old prompt", Status: "success"}))
	for _, status := range []string{RunStatusRunning, RunStatusSuccess} {
		require.NoError(t, l.UpsertActionHistory(ActionHistory{
			RunID: "r1", Name: "send email", ActionType: "atomic", Type: "atomic", Status: status,
		}))
	}
	require.NoError(t, l.UpsertTaskLog(TaskLog{TaskID: "t1", Status: "running"}))
	require.NoError(t, l.UpsertTaskLog(TaskLog{TaskID: "t1", Status: "completed"}))

	archive, err := l.Compact()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(archive, ".txt.zst"))

	// The live file holds only the latest records.
	raw, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 2)

	state, err := l.Replay()
	require.NoError(t, err)
	assert.Empty(t, state.Prompts, "prompt history lives in the archive")
	assert.Equal(t, RunStatusSuccess, state.Actions["r1"].Status)
	assert.Equal(t, "completed", state.Tasks["t1"].Status)

	// The archive decompresses to the pre-compaction file.
	af, err := os.Open(archive)
	require.NoError(t, err)
	defer af.Close()
	dec, err := zstd.NewReader(af)
	require.NoError(t, err)
	defer dec.Close()
	archived, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Contains(t, string(archived), "old prompt")
	assert.Contains(t, string(archived), RunStatusRunning)

	// The log stays appendable after compaction.
	require.NoError(t, l.UpsertTaskLog(TaskLog{TaskID: "t2", Status: "running"}))
	state, err = l.Replay()
	require.NoError(t, err)
	assert.Len(t, state.Tasks, 2)
}

func TestTaskDocumentsRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), TaskDocumentDir)

	require.NoError(t, SaveTaskDocument(dir, TaskDocument{
		ID:   "weekly-report",
		Name: "Write the weekly report",
		Body: "Collect metrics, summarize wins, send to the team list.",
	}))
	require.NoError(t, SaveTaskDocument(dir, TaskDocument{
		ID:   "expense-claim",
		Name: "File an expense claim",
		Body: "Scan receipts, fill the claim form, submit for approval.",
	}))

	docs, err := LoadTaskDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "expense-claim", docs[0].ID, "sorted by id")
	assert.Equal(t, "File an expense claim", docs[0].Name)
	assert.Contains(t, docs[0].Body, "Scan receipts")
	assert.Equal(t, "File an expense claim\n\nScan receipts, fill the claim form, submit for approval.",
		docs[0].IndexText())
}

func TestLoadTaskDocumentsMissingDir(t *testing.T) {
	docs, err := LoadTaskDocuments(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}
