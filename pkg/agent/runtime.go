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

package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/events"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// TaskOps is the task-manager surface the builtin actions need.
// *tasks.Manager satisfies it.
type TaskOps interface {
	Create(ctx context.Context, name, instruction string) (string, error)
	Start(ctx context.Context) error
	SetTodos(todos []types.TodoItem) error
	MarkCompleted(ctx context.Context, message string) error
	MarkError(ctx context.Context, message string) error
	MarkCancel(ctx context.Context, message string) error
}

// Runtime implements actions.Runtime over the task manager and the
// event streams. Agent-to-user text becomes message events; the
// progress feed delivers them.
type Runtime struct {
	tasks  TaskOps
	events *events.Manager
	logger *zap.Logger
}

// NewRuntime wires the builtin-action runtime.
func NewRuntime(taskOps TaskOps, ev *events.Manager, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{tasks: taskOps, events: ev, logger: logger}
}

// SendMessage logs the message on the session's stream; the feed
// observer carries it to the user.
func (r *Runtime) SendMessage(ctx context.Context, sessionID, message string) error {
	r.events.GetOrCreate(sessionID).Log(types.EventMessage, message,
		events.WithDisplay(message))
	return nil
}

// AskQuestion logs the question; the asking action's fire_at_delay
// keeps the session quiet until the user answers.
func (r *Runtime) AskQuestion(ctx context.Context, sessionID, question string) error {
	r.events.GetOrCreate(sessionID).Log(types.EventMessage, "Question for the user: "+question,
		events.WithDisplay(question))
	return nil
}

// StartTask creates, plans, and starts a task, returning its id.
func (r *Runtime) StartTask(ctx context.Context, name, instruction string) (string, error) {
	taskID, err := r.tasks.Create(ctx, name, instruction)
	if err != nil {
		return "", err
	}
	if err := r.tasks.Start(ctx); err != nil {
		return "", fmt.Errorf("start task %s: %w", taskID, err)
	}
	r.logger.Info("task launched", zap.String("task_id", taskID), zap.String("name", name))
	return taskID, nil
}

// UpdateTodos replaces the active task's todo list.
func (r *Runtime) UpdateTodos(ctx context.Context, todos []types.TodoItem) error {
	return r.tasks.SetTodos(todos)
}

// EndTask finalizes the active task with the requested terminal status.
func (r *Runtime) EndTask(ctx context.Context, status, message string) error {
	switch types.TaskStatus(status) {
	case types.TaskCompleted:
		return r.tasks.MarkCompleted(ctx, message)
	case types.TaskError:
		return r.tasks.MarkError(ctx, message)
	case types.TaskCancelled:
		return r.tasks.MarkCancel(ctx, message)
	default:
		return fmt.Errorf("unknown terminal status %q", status)
	}
}
