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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Compact archives the current log file as agent_logs-<ts>.txt.zst and
// rewrites the live file with only the newest record per action run and
// per task. Prompt history stays in the archive; the live file starts
// over. Returns the archive path.
func (l *Log) Compact() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.replayLocked()
	if err != nil {
		return "", err
	}

	archivePath := filepath.Join(l.dataDir, archiveName(time.Now()))
	if err := compressFile(l.path, archivePath); err != nil {
		return "", fmt.Errorf("archive log: %w", err)
	}

	tmp := l.path + ".compact"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create compact log: %w", err)
	}
	if err := writeCompact(out, state); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close compact log: %w", err)
	}

	if err := l.f.Close(); err != nil {
		return "", fmt.Errorf("close live log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return "", fmt.Errorf("swap compact log: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("reopen log: %w", err)
	}
	l.f = f

	l.logger.Info("log compacted",
		zap.String("archive", archivePath),
		zap.Int("actions", len(state.Actions)),
		zap.Int("tasks", len(state.Tasks)))
	return archivePath, nil
}

// writeCompact emits the latest action and task records in a stable
// order so repeated compactions of the same state are byte-identical.
func writeCompact(out *os.File, state *State) error {
	actionIDs := make([]string, 0, len(state.Actions))
	for id := range state.Actions {
		actionIDs = append(actionIDs, id)
	}
	sort.Strings(actionIDs)
	for _, id := range actionIDs {
		if err := writeLine(out, state.Actions[id]); err != nil {
			return err
		}
	}

	taskIDs := make([]string, 0, len(state.Tasks))
	for id := range state.Tasks {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)
	for _, id := range taskIDs {
		if err := writeLine(out, state.Tasks[id]); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(out *os.File, rec any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal compact record: %w", err)
	}
	b = append(b, '\n')
	if _, err := out.Write(b); err != nil {
		return fmt.Errorf("write compact record: %w", err)
	}
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := enc.ReadFrom(in); err != nil {
		enc.Close()
		out.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
