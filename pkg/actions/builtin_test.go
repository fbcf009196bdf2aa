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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

type fakeRuntime struct {
	messages  []string
	questions []string
	sessions  []string
	tasks     []string
	todos     []types.TodoItem
	endStatus string
	endMsg    string
}

func (f *fakeRuntime) SendMessage(ctx context.Context, sessionID, message string) error {
	f.sessions = append(f.sessions, sessionID)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeRuntime) AskQuestion(ctx context.Context, sessionID, question string) error {
	f.sessions = append(f.sessions, sessionID)
	f.questions = append(f.questions, question)
	return nil
}

func (f *fakeRuntime) StartTask(ctx context.Context, name, instruction string) (string, error) {
	f.tasks = append(f.tasks, name)
	return "task-weekly-report-deadbeef", nil
}

func (f *fakeRuntime) UpdateTodos(ctx context.Context, todos []types.TodoItem) error {
	f.todos = todos
	return nil
}

func (f *fakeRuntime) EndTask(ctx context.Context, status, message string) error {
	f.endStatus = status
	f.endMsg = message
	return nil
}

func newBuiltinRegistry(t *testing.T) (*Registry, *fakeRuntime) {
	t.Helper()
	rt := &fakeRuntime{}
	r := NewRegistry("", nil, zap.NewNop())
	require.NoError(t, RegisterBuiltins(context.Background(), r, rt))
	return r, rt
}

func TestRegisterBuiltinsAllPresent(t *testing.T) {
	r, _ := newBuiltinRegistry(t)
	for _, name := range BuiltinNames() {
		action, err := r.Get(name)
		require.NoError(t, err, name)
		_, ok := r.Handler(name)
		assert.True(t, ok, name)
		if name == BuiltinUpdateTodos {
			assert.Equal(t, ModeCLI, action.Mode)
		} else {
			assert.Equal(t, ModeAll, action.Mode)
		}
	}
}

func TestBuiltinSendMessage(t *testing.T) {
	r, rt := newBuiltinRegistry(t)
	h, _ := r.Handler(BuiltinSendMessage)

	ctx := WithSession(context.Background(), "task-1")
	out, err := h(ctx, map[string]any{"message": "done with the report"})
	require.NoError(t, err)
	assert.Equal(t, true, out["sent"])
	assert.Equal(t, []string{"task-1"}, rt.sessions)
	assert.Equal(t, []string{"done with the report"}, rt.messages)

	_, err = h(ctx, map[string]any{})
	assert.Error(t, err)
}

func TestBuiltinSendMessageDefaultsToChatSession(t *testing.T) {
	r, rt := newBuiltinRegistry(t)
	h, _ := r.Handler(BuiltinSendMessage)

	_, err := h(context.Background(), map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{types.SessionChat}, rt.sessions)
}

func TestBuiltinAskQuestionDelaysFollowUp(t *testing.T) {
	r, rt := newBuiltinRegistry(t)
	h, _ := r.Handler(BuiltinAskQuestion)

	out, err := h(context.Background(), map[string]any{"question": "which folder?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"which folder?"}, rt.questions)

	delay, ok := FireAtDelay(out)
	require.True(t, ok)
	assert.Greater(t, delay, 60.0)
}

func TestBuiltinStartTask(t *testing.T) {
	r, rt := newBuiltinRegistry(t)
	h, _ := r.Handler(BuiltinStartTask)

	out, err := h(context.Background(), map[string]any{
		"name":        "weekly report",
		"instruction": "compile the numbers and email them",
	})
	require.NoError(t, err)
	assert.Equal(t, "task-weekly-report-deadbeef", out["task_id"])
	assert.Equal(t, []string{"weekly report"}, rt.tasks)

	_, err = h(context.Background(), map[string]any{"name": "no instruction"})
	assert.Error(t, err)
}

func TestBuiltinUpdateTodos(t *testing.T) {
	r, rt := newBuiltinRegistry(t)
	h, _ := r.Handler(BuiltinUpdateTodos)

	out, err := h(context.Background(), map[string]any{
		"todos": []any{
			map[string]any{"content": "gather inputs", "status": "completed"},
			map[string]any{"content": "draft report", "active_form": "Drafting report", "status": "in_progress"},
			map[string]any{"content": "send it"},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out["count"])
	require.Len(t, rt.todos, 3)
	assert.Equal(t, types.TodoCompleted, rt.todos[0].Status)
	assert.Equal(t, "Drafting report", rt.todos[1].ActiveForm)
	assert.Equal(t, types.TodoPending, rt.todos[2].Status)

	_, err = h(context.Background(), map[string]any{"todos": []any{map[string]any{"status": "pending"}}})
	assert.Error(t, err)
}

func TestBuiltinEndTask(t *testing.T) {
	r, rt := newBuiltinRegistry(t)
	h, _ := r.Handler(BuiltinEndTask)

	out, err := h(context.Background(), map[string]any{"status": "completed", "message": "all done"})
	require.NoError(t, err)
	assert.Equal(t, true, out["ended"])
	assert.Equal(t, "completed", rt.endStatus)
	assert.Equal(t, "all done", rt.endMsg)

	_, err = h(context.Background(), map[string]any{"status": "finished"})
	assert.Error(t, err)
}

func TestBuiltinIgnore(t *testing.T) {
	r, _ := newBuiltinRegistry(t)
	h, _ := r.Handler(BuiltinIgnore)

	out, err := h(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["ignored"])
}
