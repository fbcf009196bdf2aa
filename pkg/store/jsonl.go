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
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

// LogFileName is the live JSONL file under the data dir.
const LogFileName = "agent_logs.txt"

// maxLineBytes bounds replay line size; externalized outputs keep
// prompt lines well under this.
const maxLineBytes = 8 << 20

// Log is the append-only JSONL store. Upserts append full replacement
// lines; Replay folds the file into latest-state maps.
type Log struct {
	dataDir string
	path    string
	logger  *zap.Logger

	mu sync.Mutex
	f  *os.File
}

// Open creates the data dir if needed and opens the log for appending.
func Open(dataDir string, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, LogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &Log{dataDir: dataDir, path: path, logger: logger, f: f}, nil
}

// Close flushes and releases the file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// AppendPrompt appends one prompt record.
func (l *Log) AppendPrompt(rec PromptLog) error {
	rec.EntryType = EntryPromptLog
	return l.appendLine(rec)
}

// UpsertActionHistory appends a replacement record for rec.RunID.
func (l *Log) UpsertActionHistory(rec ActionHistory) error {
	rec.EntryType = EntryActionHistory
	return l.appendLine(rec)
}

// UpsertTaskLog appends a replacement record for rec.TaskID.
func (l *Log) UpsertTaskLog(rec TaskLog) error {
	rec.EntryType = EntryTaskLog
	return l.appendLine(rec)
}

func (l *Log) appendLine(rec any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(b); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// RecordPrompt implements the gateway's prompt sink. Persistence
// failures are logged, not surfaced: a generation must not fail because
// its audit line did.
func (l *Log) RecordPrompt(rec llm.PromptRecord) {
	entry := PromptLog{
		EntryType: EntryPromptLog,
		Datetime:  Stamp(rec.CreatedAt),
		Input: PromptInput{
			SystemPrompt: rec.System,
			UserPrompt:   rec.User,
		},
		Output:           rec.Response,
		Provider:         rec.Provider,
		Model:            rec.Model,
		Status:           "success",
		TokenCountInput:  rec.InputTokens,
		TokenCountOutput: rec.OutputTokens,
	}
	if rec.TaskID != "" || rec.CallType != "" {
		entry.Config = map[string]string{}
		if rec.TaskID != "" {
			entry.Config["task_id"] = rec.TaskID
		}
		if rec.CallType != "" {
			entry.Config["call_type"] = rec.CallType
		}
	}
	if err := l.appendLine(entry); err != nil {
		l.logger.Warn("prompt log append failed", zap.Error(err))
	}
}

// State is the folded view of the log: every prompt in order, and the
// newest record per action run and per task.
type State struct {
	Prompts []PromptLog
	Actions map[string]ActionHistory
	Tasks   map[string]TaskLog
}

// Replay reads the whole file and folds upserts. Unparseable lines are
// skipped with a warning so one torn write cannot brick startup.
func (l *Log) Replay() (*State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replayLocked()
}

func (l *Log) replayLocked() (*State, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open log for replay: %w", err)
	}
	defer f.Close()

	state := &State{
		Actions: make(map[string]ActionHistory),
		Tasks:   make(map[string]TaskLog),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var probe struct {
			EntryType string `json:"entry_type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			l.logger.Warn("skipping unparseable log line",
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		switch probe.EntryType {
		case EntryPromptLog:
			var rec PromptLog
			if err := json.Unmarshal(line, &rec); err == nil {
				state.Prompts = append(state.Prompts, rec)
			}
		case EntryActionHistory:
			var rec ActionHistory
			if err := json.Unmarshal(line, &rec); err == nil && rec.RunID != "" {
				state.Actions[rec.RunID] = rec
			}
		case EntryTaskLog:
			var rec TaskLog
			if err := json.Unmarshal(line, &rec); err == nil && rec.TaskID != "" {
				state.Tasks[rec.TaskID] = rec
			}
		default:
			l.logger.Warn("skipping log line with unknown entry type",
				zap.Int("line", lineNo),
				zap.String("entry_type", probe.EntryType))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay scan: %w", err)
	}
	return state, nil
}

// archiveName names the compressed snapshot Compact leaves behind.
func archiveName(now time.Time) string {
	return fmt.Sprintf("agent_logs-%d.txt.zst", now.Unix())
}
