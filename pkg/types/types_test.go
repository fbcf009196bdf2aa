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
package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerMerge(t *testing.T) {
	older := Trigger{
		FireAt:                100,
		Priority:              3,
		NextActionDescription: "check the inbox",
		SessionID:             SessionChat,
		Payload:               map[string]any{"a": 1, "b": "old"},
	}
	incoming := Trigger{
		FireAt:                200,
		Priority:              5,
		NextActionDescription: "draft the reply",
		SessionID:             SessionChat,
		Payload:               map[string]any{"b": "new", "c": true},
	}

	merged := incoming.Merge(older)

	assert.Equal(t, 3, merged.Priority)
	assert.Equal(t, float64(100), merged.FireAt)
	assert.Equal(t, "check the inbox\n\ndraft the reply", merged.NextActionDescription)
	assert.Equal(t, "new", merged.Payload["b"])
	assert.Equal(t, 1, merged.Payload["a"])
	assert.Equal(t, true, merged.Payload["c"])
}

func TestTriggerMergeDeduplicatesDescriptions(t *testing.T) {
	a := Trigger{FireAt: 1, Priority: 1, NextActionDescription: "same thing", SessionID: "s"}
	b := Trigger{FireAt: 2, Priority: 2, NextActionDescription: "same thing", SessionID: "s"}
	merged := b.Merge(a)
	assert.Equal(t, "same thing", merged.NextActionDescription)
}

func TestTriggerMergeKeepsFirstSeenOrder(t *testing.T) {
	first := Trigger{FireAt: 1, Priority: 2, NextActionDescription: "first", SessionID: "s"}
	second := Trigger{FireAt: 2, Priority: 2, NextActionDescription: "second", SessionID: "s"}
	incoming := Trigger{FireAt: 3, Priority: 2, NextActionDescription: "third", SessionID: "s"}
	merged := incoming.Merge(first, second)
	assert.Equal(t, "first\n\nsecond\n\nthird", merged.NextActionDescription)
}

func TestTriggerOrdering(t *testing.T) {
	early := Trigger{FireAt: 10, Priority: 9}
	late := Trigger{FireAt: 20, Priority: 1}
	assert.True(t, early.Before(late), "earlier fire time wins regardless of priority")

	a := Trigger{FireAt: 10, Priority: 1}
	b := Trigger{FireAt: 10, Priority: 5}
	assert.True(t, a.Before(b), "priority breaks fire-time ties")
}

func TestTriggerFireTimeRoundTrip(t *testing.T) {
	now := time.Now()
	tr := NewTrigger("s", "d", now, 5)
	assert.WithinDuration(t, now, tr.FireTime(), time.Millisecond)
	assert.True(t, tr.Due(now.Add(time.Second)))
	assert.False(t, tr.Due(now.Add(-time.Second)))
}

func TestTaskNormalizeRepairsDoubleCurrent(t *testing.T) {
	task := Task{Steps: []PlanStep{
		{StepIndex: 0, Status: StepCompleted},
		{StepIndex: 1, Status: StepCurrent},
		{StepIndex: 2, Status: StepCurrent},
		{StepIndex: 3, Status: StepPending},
	}}

	repaired := task.Normalize()

	require.True(t, repaired)
	assert.Equal(t, StepCurrent, task.Steps[1].Status)
	assert.Equal(t, StepPending, task.Steps[2].Status)

	cur := task.CurrentStep()
	require.NotNil(t, cur)
	assert.Equal(t, 1, cur.StepIndex)
	assert.False(t, task.Normalize(), "already normal")
}

func TestTaskCurrentTodoFallback(t *testing.T) {
	task := Task{Todos: []TodoItem{
		{Content: "a", Status: TodoCompleted},
		{Content: "b", Status: TodoPending},
	}}
	cur := task.CurrentTodo()
	require.NotNil(t, cur)
	assert.Equal(t, "b", cur.Content)

	task.Todos[1].Status = TodoInProgress
	cur = task.CurrentTodo()
	require.NotNil(t, cur)
	assert.Equal(t, "b", cur.Content)

	task.Todos = nil
	assert.Nil(t, task.CurrentTodo())
}

func TestTaskRebuildTodos(t *testing.T) {
	task := Task{Steps: []PlanStep{
		{StepName: "gather inputs", Status: StepCompleted},
		{StepName: "write report", Status: StepCurrent},
		{StepName: "send report", Status: StepPending},
	}}
	task.RebuildTodos()

	require.Len(t, task.Todos, 3)
	assert.Equal(t, TodoCompleted, task.Todos[0].Status)
	assert.Equal(t, TodoInProgress, task.Todos[1].Status)
	assert.Equal(t, "Working on: write report", task.Todos[1].ActiveForm)
	assert.Equal(t, TodoPending, task.Todos[2].Status)
}

func TestTaskDoneAndFailed(t *testing.T) {
	task := Task{Steps: []PlanStep{
		{Status: StepCompleted},
		{Status: StepFailed},
	}}
	assert.True(t, task.Done())
	assert.True(t, task.Failed())

	task.Steps[1].Status = StepPending
	assert.False(t, task.Done())
	assert.False(t, task.Failed())

	empty := Task{}
	assert.False(t, empty.Done())
}

func TestAgentPropertiesFloors(t *testing.T) {
	p := NewAgentProperties(1, 10)
	assert.Equal(t, int64(MinActionsPerTask), p.MaxActionsPerTask())
	assert.Equal(t, int64(MinTokensPerTask), p.MaxTokensPerTask())

	big := NewAgentProperties(50, 2_000_000)
	assert.Equal(t, int64(50), big.MaxActionsPerTask())
	assert.Equal(t, int64(2_000_000), big.MaxTokensPerTask())
}

func TestAgentPropertiesCountersAndReset(t *testing.T) {
	p := NewAgentProperties(10, 100000)
	p.AddActions(8)
	p.AddTokens(50000)

	assert.InDelta(t, 0.8, p.ActionBudgetRatio(), 1e-9)
	assert.InDelta(t, 0.5, p.TokenBudgetRatio(), 1e-9)

	p.SetCurrent("task-1", 2)
	assert.Equal(t, "task-1", p.CurrentTaskID())
	assert.Equal(t, 2, p.CurrentStepIndex())

	p.ResetTaskCounters()
	p.ClearCurrent()
	assert.Zero(t, p.ActionCount())
	assert.Zero(t, p.TokenCount())
	assert.Empty(t, p.CurrentTaskID())
	assert.Equal(t, -1, p.CurrentStepIndex())
}
