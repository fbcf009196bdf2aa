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

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
	TaskPaused    TaskStatus = "paused"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status ends the task.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskError, TaskCancelled:
		return true
	}
	return false
}

// StepStatus is the lifecycle state of a plan step. At most one step
// of a task is ever "current".
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCurrent   StepStatus = "current"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	StepCancelled StepStatus = "cancelled"
)

// Terminal reports whether the status ends the step.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepCompleted, StepFailed, StepSkipped, StepCancelled:
		return true
	}
	return false
}

// PlanStep is one step of a task plan. ActionInstruction tells the
// loop what to do; ValidationInstruction tells it how to check the
// outcome before moving on.
type PlanStep struct {
	StepIndex             int        `json:"step_index"`
	StepName              string     `json:"step_name"`
	Description           string     `json:"description"`
	ActionInstruction     string     `json:"action_instruction"`
	ValidationInstruction string     `json:"validation_instruction,omitempty"`
	Status                StepStatus `json:"status"`
	FailureMessage        string     `json:"failure_message,omitempty"`
}

// TodoStatus is the display state of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// TodoItem is the user-facing mirror of plan progress. ActiveForm is
// the present-continuous label shown while the item is in progress.
type TodoItem struct {
	Content    string     `json:"content"`
	ActiveForm string     `json:"active_form"`
	Status     TodoStatus `json:"status"`
}

// Task is one unit of delegated work, carrying its plan, its todo
// mirror, and its scratch directory.
type Task struct {
	ID          string     `json:"task_id"`
	Name        string     `json:"name"`
	Instruction string     `json:"instruction"`
	Steps       []PlanStep `json:"steps"`
	Todos       []TodoItem `json:"todos,omitempty"`
	TempDir     string     `json:"temp_dir,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Status      TaskStatus `json:"status"`
	Results     string     `json:"results,omitempty"`
}

// CurrentStep returns the step marked current, or nil. When more than
// one step is current the first wins; Normalize repairs such state.
func (t *Task) CurrentStep() *PlanStep {
	for i := range t.Steps {
		if t.Steps[i].Status == StepCurrent {
			return &t.Steps[i]
		}
	}
	return nil
}

// CurrentTodo returns the in-progress todo, else the first pending
// one, else nil.
func (t *Task) CurrentTodo() *TodoItem {
	for i := range t.Todos {
		if t.Todos[i].Status == TodoInProgress {
			return &t.Todos[i]
		}
	}
	for i := range t.Todos {
		if t.Todos[i].Status == TodoPending {
			return &t.Todos[i]
		}
	}
	return nil
}

// NextPending returns the first pending step, or nil.
func (t *Task) NextPending() *PlanStep {
	for i := range t.Steps {
		if t.Steps[i].Status == StepPending {
			return &t.Steps[i]
		}
	}
	return nil
}

// Normalize enforces the single-current invariant, demoting every
// current step after the first back to pending, and reports whether a
// repair was needed.
func (t *Task) Normalize() bool {
	found := false
	repaired := false
	for i := range t.Steps {
		if t.Steps[i].Status != StepCurrent {
			continue
		}
		if found {
			t.Steps[i].Status = StepPending
			repaired = true
			continue
		}
		found = true
	}
	return repaired
}

// Done reports whether every step reached a terminal status.
func (t *Task) Done() bool {
	for i := range t.Steps {
		if !t.Steps[i].Status.Terminal() {
			return false
		}
	}
	return len(t.Steps) > 0
}

// Failed reports whether any step failed.
func (t *Task) Failed() bool {
	for i := range t.Steps {
		if t.Steps[i].Status == StepFailed {
			return true
		}
	}
	return false
}

// RebuildTodos regenerates the todo mirror from the plan: one item per
// step, content from the step name, status mapped from the step status.
func (t *Task) RebuildTodos() {
	todos := make([]TodoItem, 0, len(t.Steps))
	for i := range t.Steps {
		s := &t.Steps[i]
		item := TodoItem{
			Content:    s.StepName,
			ActiveForm: "Working on: " + s.StepName,
		}
		switch s.Status {
		case StepCurrent:
			item.Status = TodoInProgress
		case StepCompleted:
			item.Status = TodoCompleted
		case StepFailed, StepSkipped, StepCancelled:
			// Terminal without completion still leaves the list; the
			// item shows completed so the display does not stall.
			item.Status = TodoCompleted
		default:
			item.Status = TodoPending
		}
		todos = append(todos, item)
	}
	t.Todos = todos
}
