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

// Package store persists the agent's durable state: an append-only
// JSONL log of prompts, action runs, and task snapshots, plus the
// task-document corpus used for few-shot planning.
package store

import (
	"time"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Entry type discriminators, one per record shape.
const (
	EntryPromptLog     = "prompt_log"
	EntryActionHistory = "action_history"
	EntryTaskLog       = "task_log"
)

// Run statuses for action history records.
const (
	RunStatusRunning   = "running"
	RunStatusSuccess   = "success"
	RunStatusError     = "error"
	RunStatusCancelled = "cancelled"
)

// PromptInput is the two prompt halves of one generation.
type PromptInput struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

// PromptLog records one LLM generation. Append-only.
type PromptLog struct {
	EntryType        string            `json:"entry_type"`
	Datetime         string            `json:"datetime"`
	Input            PromptInput       `json:"input"`
	Output           string            `json:"output"`
	Provider         string            `json:"provider"`
	Model            string            `json:"model"`
	Config           map[string]string `json:"config,omitempty"`
	Status           string            `json:"status"`
	TokenCountInput  int               `json:"token_count_input"`
	TokenCountOutput int               `json:"token_count_output"`
}

// ActionHistory records one action run. Upserted by RunID: each write
// appends a full replacement line and replay keeps the newest. The
// record carries the action's type under both action_type and type to
// stay line-compatible with older logs that wrote both.
type ActionHistory struct {
	EntryType  string         `json:"entry_type"`
	RunID      string         `json:"runId"`
	SessionID  string         `json:"sessionId"`
	ParentID   string         `json:"parentId,omitempty"`
	Name       string         `json:"name"`
	ActionType string         `json:"action_type"`
	Type       string         `json:"type"`
	Status     string         `json:"status"`
	Inputs     map[string]any `json:"inputs"`
	Outputs    map[string]any `json:"outputs"`
	StartedAt  string         `json:"startedAt"`
	EndedAt    string         `json:"endedAt,omitempty"`
}

// TaskLog records a task snapshot. Upserted by TaskID.
type TaskLog struct {
	EntryType   string           `json:"entry_type"`
	TaskID      string           `json:"task_id"`
	Name        string           `json:"name"`
	Instruction string           `json:"instruction"`
	Steps       []types.PlanStep `json:"steps"`
	CreatedAt   string           `json:"created_at"`
	Status      string           `json:"status"`
	Results     string           `json:"results,omitempty"`
	UpdatedAt   string           `json:"updated_at"`
}

// TaskLogFromTask snapshots a task into its log record.
func TaskLogFromTask(task *types.Task) TaskLog {
	return TaskLog{
		EntryType:   EntryTaskLog,
		TaskID:      task.ID,
		Name:        task.Name,
		Instruction: task.Instruction,
		Steps:       task.Steps,
		CreatedAt:   task.CreatedAt.UTC().Format(time.RFC3339),
		Status:      string(task.Status),
		Results:     task.Results,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Stamp formats t the way log records store times.
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
