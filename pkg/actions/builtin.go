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

package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Builtin action names. These are always registered and form the
// conversation-mode allowlist.
const (
	BuiltinSendMessage = "send message"
	BuiltinAskQuestion = "ask question"
	BuiltinStartTask   = "start task"
	BuiltinUpdateTodos = "update todos"
	BuiltinEndTask     = "end task"
	BuiltinIgnore      = "ignore"
)

// BuiltinNames lists every builtin in registration order.
func BuiltinNames() []string {
	return []string{
		BuiltinSendMessage,
		BuiltinAskQuestion,
		BuiltinStartTask,
		BuiltinUpdateTodos,
		BuiltinEndTask,
		BuiltinIgnore,
	}
}

// Runtime is the narrow surface builtins need from the agent wiring.
// Handlers stay free of loop internals; the agent implements this
// against its task manager, trigger queue, and user feed.
type Runtime interface {
	// SendMessage delivers a message to the user on the session's feed.
	SendMessage(ctx context.Context, sessionID, message string) error
	// AskQuestion delivers a question and leaves the session awaiting
	// the user's reply.
	AskQuestion(ctx context.Context, sessionID, question string) error
	// StartTask creates and starts a new task, returning its id.
	StartTask(ctx context.Context, name, instruction string) (string, error)
	// UpdateTodos replaces the active task's todo list.
	UpdateTodos(ctx context.Context, todos []types.TodoItem) error
	// EndTask finalizes the active task with a terminal status.
	EndTask(ctx context.Context, status, message string) error
}

// RegisterBuiltins installs the native actions over rt. Visibility is
// ALL except update todos, which only makes sense mid-task on a CLI.
func RegisterBuiltins(ctx context.Context, r *Registry, rt Runtime) error {
	builtins := []struct {
		action  Action
		handler Handler
	}{
		{
			action: Action{
				Name:        BuiltinSendMessage,
				Description: "Send a message to the user. Use for status updates, results, and anything the user should read.",
				Type:        TypeAtomic,
				Mode:        ModeAll,
				InputSchema: map[string]SchemaField{
					"message": {Type: "str", Example: "The report is ready.", Description: "text shown to the user"},
				},
				OutputSchema: map[string]SchemaField{
					"sent": {Type: "bool"},
				},
			},
			handler: func(ctx context.Context, input map[string]any) (map[string]any, error) {
				message, err := stringField(input, "message")
				if err != nil {
					return nil, err
				}
				if err := rt.SendMessage(ctx, sessionFrom(ctx), message); err != nil {
					return nil, err
				}
				return map[string]any{"sent": true}, nil
			},
		},
		{
			action: Action{
				Name:        BuiltinAskQuestion,
				Description: "Ask the user a question and wait for the reply before continuing.",
				Type:        TypeAtomic,
				Mode:        ModeAll,
				InputSchema: map[string]SchemaField{
					"question": {Type: "str", Example: "Which folder should I archive?", Description: "question shown to the user"},
				},
				OutputSchema: map[string]SchemaField{
					"asked": {Type: "bool"},
				},
			},
			handler: func(ctx context.Context, input map[string]any) (map[string]any, error) {
				question, err := stringField(input, "question")
				if err != nil {
					return nil, err
				}
				if err := rt.AskQuestion(ctx, sessionFrom(ctx), question); err != nil {
					return nil, err
				}
				// A long delay keeps the session quiet until the user
				// answers; the reply trigger preempts it.
				return map[string]any{"asked": true, OutputFireAtDelay: 600.0}, nil
			},
		},
		{
			action: Action{
				Name:        BuiltinStartTask,
				Description: "Create a new task from a name and an instruction, plan it, and begin execution.",
				Type:        TypeAtomic,
				Mode:        ModeAll,
				InputSchema: map[string]SchemaField{
					"name":        {Type: "str", Example: "weekly report", Description: "short task name"},
					"instruction": {Type: "str", Description: "full instruction describing the work"},
				},
				OutputSchema: map[string]SchemaField{
					"task_id": {Type: "str"},
				},
			},
			handler: func(ctx context.Context, input map[string]any) (map[string]any, error) {
				name, err := stringField(input, "name")
				if err != nil {
					return nil, err
				}
				instruction, err := stringField(input, "instruction")
				if err != nil {
					return nil, err
				}
				taskID, err := rt.StartTask(ctx, name, instruction)
				if err != nil {
					return nil, err
				}
				return map[string]any{"task_id": taskID}, nil
			},
		},
		{
			action: Action{
				Name:        BuiltinUpdateTodos,
				Description: "Replace the task's todo list shown to the user. Each item has content, active_form, and status.",
				Type:        TypeAtomic,
				Mode:        ModeCLI,
				InputSchema: map[string]SchemaField{
					"todos": {Type: "list", Description: "items with content, active_form, status (pending|in_progress|completed)"},
				},
				OutputSchema: map[string]SchemaField{
					"updated": {Type: "bool"},
					"count":   {Type: "int"},
				},
			},
			handler: func(ctx context.Context, input map[string]any) (map[string]any, error) {
				todos, err := todosField(input, "todos")
				if err != nil {
					return nil, err
				}
				if err := rt.UpdateTodos(ctx, todos); err != nil {
					return nil, err
				}
				return map[string]any{"updated": true, "count": len(todos)}, nil
			},
		},
		{
			action: Action{
				Name:        BuiltinEndTask,
				Description: "Finish the current task with a terminal status and a closing message.",
				Type:        TypeAtomic,
				Mode:        ModeAll,
				InputSchema: map[string]SchemaField{
					"status":  {Type: "str", Example: "completed", Description: "completed, error, or cancelled"},
					"message": {Type: "str", Description: "closing summary shown to the user"},
				},
				OutputSchema: map[string]SchemaField{
					"ended": {Type: "bool"},
				},
			},
			handler: func(ctx context.Context, input map[string]any) (map[string]any, error) {
				status, err := stringField(input, "status")
				if err != nil {
					return nil, err
				}
				message, _ := input["message"].(string)
				if !validEndStatus(status) {
					return nil, fmt.Errorf("status must be completed, error, or cancelled; got %q", status)
				}
				if err := rt.EndTask(ctx, status, message); err != nil {
					return nil, err
				}
				return map[string]any{"ended": true}, nil
			},
		},
		{
			action: Action{
				Name:        BuiltinIgnore,
				Description: "Do nothing. Choose when the trigger needs no response.",
				Type:        TypeAtomic,
				Mode:        ModeAll,
			},
			handler: func(ctx context.Context, input map[string]any) (map[string]any, error) {
				return map[string]any{"ignored": true}, nil
			},
		},
	}

	for _, b := range builtins {
		action := b.action
		if err := r.RegisterBuiltin(ctx, &action, b.handler); err != nil {
			return fmt.Errorf("register builtin %q: %w", action.Name, err)
		}
	}
	return nil
}

type sessionKey struct{}

// WithSession attaches the triggering session id to ctx so builtin
// handlers can address the right feed.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionFrom(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok && id != "" {
		return id
	}
	return types.SessionChat
}

func stringField(input map[string]any, key string) (string, error) {
	v, ok := input[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("missing required field %q", key)
	}
	return v, nil
}

func todosField(input map[string]any, key string) ([]types.TodoItem, error) {
	raw, ok := input[key].([]any)
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	todos := make([]types.TodoItem, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("todos[%d] is not an object", i)
		}
		content, _ := m["content"].(string)
		if strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("todos[%d] has no content", i)
		}
		activeForm, _ := m["active_form"].(string)
		status, _ := m["status"].(string)
		if status == "" {
			status = string(types.TodoPending)
		}
		todos = append(todos, types.TodoItem{
			Content:    content,
			ActiveForm: activeForm,
			Status:     types.TodoStatus(status),
		})
	}
	return todos, nil
}

func validEndStatus(status string) bool {
	switch status {
	case string(types.TaskCompleted), string(types.TaskError), string(types.TaskCancelled):
		return true
	}
	return false
}
