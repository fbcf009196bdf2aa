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

// Package tasks owns the single active task: creation from a planner
// response, the step state machine, todo mirroring, and end-of-task
// cleanup. No other component mutates a Task; everyone else sees
// snapshots.
package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/events"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/planner"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/store"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Trigger priorities used by the task lifecycle. User input outranks
// step work, which outranks loop follow-ups.
const (
	PriorityUser     = 1
	PriorityStep     = 3
	PriorityFollowUp = 5
)

// ScratchDirName is the directory under the data dir holding per-task
// temp dirs.
const ScratchDirName = "tmp"

// ErrNoActiveTask is returned by operations that need a running task
// when none is active.
var ErrNoActiveTask = fmt.Errorf("no active task")

// ErrTaskActive is returned by Create while another task is running.
var ErrTaskActive = fmt.Errorf("a task is already active")

// PlanSource produces and revises plans. *planner.Planner satisfies it.
type PlanSource interface {
	Plan(ctx context.Context, name, instruction string) (*planner.Plan, error)
	Update(ctx context.Context, task *types.Task, eventStream string, advanceNext bool) (*planner.Plan, error)
}

// TriggerSink is the queue surface the manager needs: scheduling step
// triggers and purging a session on terminal transitions.
type TriggerSink interface {
	Put(ctx context.Context, trig types.Trigger)
	RemoveSessions(ids ...string)
}

// SessionEnder releases the LLM session caches of a finished task.
// *llm.Gateway satisfies it.
type SessionEnder interface {
	EndAllSessionCaches(ctx context.Context, taskID string)
}

// Recorder persists task snapshots. *store.Log satisfies it.
type Recorder interface {
	UpsertTaskLog(rec store.TaskLog) error
}

// Manager is the task lifecycle owner.
type Manager struct {
	planner  PlanSource
	queue    TriggerSink
	events   *events.Manager
	props    *types.AgentProperties
	sessions SessionEnder
	recorder Recorder
	logger   *zap.Logger

	scratchRoot string

	mu     sync.Mutex
	active *types.Task
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSessionEnder wires LLM session-cache cleanup on task end.
func WithSessionEnder(s SessionEnder) Option {
	return func(m *Manager) { m.sessions = s }
}

// WithRecorder wires task_log persistence.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a task manager. scratchRoot is where per-task
// temp dirs are provisioned, normally <data_dir>/tmp.
func NewManager(p PlanSource, q TriggerSink, ev *events.Manager, props *types.AgentProperties, scratchRoot string, opts ...Option) *Manager {
	m := &Manager{
		planner:     p,
		queue:       q,
		events:      ev,
		props:       props,
		logger:      zap.NewNop(),
		scratchRoot: scratchRoot,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds a new task from a planner run and registers it as the
// single active task. The first pending step becomes current. A
// planner fallback (one failed step) still creates the task; Start
// surfaces the failure.
func (m *Manager) Create(ctx context.Context, name, instruction string) (string, error) {
	m.mu.Lock()
	if m.active != nil && !m.active.Status.Terminal() {
		id := m.active.ID
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrTaskActive, id)
	}
	m.mu.Unlock()

	id := NewTaskID(name)
	tempDir := filepath.Join(m.scratchRoot, id)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("provision task dir: %w", err)
	}

	plan, err := m.planner.Plan(ctx, name, instruction)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return "", fmt.Errorf("plan task: %w", err)
	}

	task := &types.Task{
		ID:          id,
		Name:        name,
		Instruction: instruction,
		Steps:       plan.Steps,
		TempDir:     tempDir,
		CreatedAt:   time.Now().UTC(),
		Status:      types.TaskRunning,
	}
	ensureCurrent(task)
	task.RebuildTodos()

	m.mu.Lock()
	m.active = task
	m.mu.Unlock()

	m.props.SetCurrent(id, currentIndex(task))
	m.props.ResetTaskCounters()

	stream := m.events.GetOrCreate(id)
	stream.SetScratchDir(tempDir)
	stream.Log(types.EventTask,
		fmt.Sprintf("Task created: %s (%d steps). Goal: %s", name, len(task.Steps), plan.Goal),
		events.WithDisplay("Task started: "+name))

	m.persist(task)
	m.logger.Info("task created",
		zap.String("task_id", id),
		zap.String("name", name),
		zap.Int("steps", len(task.Steps)))
	return id, nil
}

// Start enqueues the trigger for the current step. A task whose plan
// has no runnable step (planner fallback) is marked error instead.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	task := m.active
	if task == nil || task.Status != types.TaskRunning {
		m.mu.Unlock()
		return ErrNoActiveTask
	}
	step := task.CurrentStep()
	if step == nil {
		failure := firstFailure(task)
		m.mu.Unlock()
		if err := m.MarkError(ctx, failure); err != nil {
			return err
		}
		return fmt.Errorf("task %s has no runnable step: %s", task.ID, failure)
	}
	trig := types.NewTrigger(task.ID, stepDescription(step), time.Now(), PriorityStep)
	id := task.ID
	m.mu.Unlock()

	m.queue.Put(ctx, trig)
	m.logger.Debug("task started", zap.String("task_id", id), zap.String("step", step.StepName))
	return nil
}

// UpdatePlan revises the active task's plan against its recent events,
// preserving id, temp dir, and creation time. Exactly one step is
// current afterward.
func (m *Manager) UpdatePlan(ctx context.Context, advanceNext bool) error {
	m.mu.Lock()
	task := m.active
	if task == nil || task.Status != types.TaskRunning {
		m.mu.Unlock()
		return ErrNoActiveTask
	}
	snapshot := *task
	m.mu.Unlock()

	var eventText string
	if stream, ok := m.events.Get(snapshot.ID); ok {
		eventText = stream.PromptSnapshot(true)
	}
	plan, err := m.planner.Update(ctx, &snapshot, eventText, advanceNext)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}

	m.mu.Lock()
	task = m.active
	if task == nil || task.ID != snapshot.ID {
		m.mu.Unlock()
		return ErrNoActiveTask
	}
	task.Steps = plan.Steps
	ensureCurrent(task)
	task.RebuildTodos()
	m.mu.Unlock()

	m.props.SetCurrent(task.ID, currentIndex(task))
	if stream, ok := m.events.Get(task.ID); ok {
		stream.Log(types.EventTask,
			fmt.Sprintf("Plan updated: %d steps", len(plan.Steps)))
	}
	m.persist(task)
	return nil
}

// StartNextStep finalizes the current step as completed and promotes
// the next pending step, or replans when asked to. When every step is
// terminal the task auto-completes.
func (m *Manager) StartNextStep(ctx context.Context, replan bool) error {
	m.mu.Lock()
	task := m.active
	if task == nil || task.Status != types.TaskRunning {
		m.mu.Unlock()
		return ErrNoActiveTask
	}
	var finished string
	if step := task.CurrentStep(); step != nil {
		step.Status = types.StepCompleted
		finished = step.StepName
	}
	taskID := task.ID
	m.mu.Unlock()

	if finished != "" {
		if stream, ok := m.events.Get(taskID); ok {
			stream.Log(types.EventTask, "Step completed: "+finished,
				events.WithDisplay("Completed: "+finished))
		}
	}

	if replan {
		if err := m.UpdatePlan(ctx, true); err != nil {
			return err
		}
	}

	m.mu.Lock()
	task = m.active
	if task == nil || task.Status != types.TaskRunning {
		m.mu.Unlock()
		return ErrNoActiveTask
	}
	ensureCurrent(task)
	task.RebuildTodos()
	step := task.CurrentStep()
	done := step == nil && task.Done()
	id := task.ID
	m.mu.Unlock()

	if done {
		return m.MarkCompleted(ctx, "all steps completed")
	}
	if step == nil {
		return m.MarkError(ctx, "no runnable step remains")
	}

	m.props.SetCurrent(id, step.StepIndex)
	m.persistActive()
	m.queue.Put(ctx, types.NewTrigger(id, stepDescription(step), time.Now(), PriorityStep))
	return nil
}

// MarkCompleted ends the task successfully: the current step is
// completed, queued triggers purged, budgets reset, caches released,
// and the temp dir removed.
func (m *Manager) MarkCompleted(ctx context.Context, message string) error {
	return m.finish(ctx, types.TaskCompleted, types.StepCompleted, message)
}

// MarkError ends the task in error. The temp dir is preserved for
// debugging.
func (m *Manager) MarkError(ctx context.Context, message string) error {
	return m.finish(ctx, types.TaskError, types.StepFailed, message)
}

// MarkCancel ends the task as cancelled. The temp dir is preserved.
func (m *Manager) MarkCancel(ctx context.Context, message string) error {
	return m.finish(ctx, types.TaskCancelled, types.StepCancelled, message)
}

func (m *Manager) finish(ctx context.Context, taskStatus types.TaskStatus, stepStatus types.StepStatus, message string) error {
	m.mu.Lock()
	task := m.active
	if task == nil || task.Status.Terminal() {
		m.mu.Unlock()
		m.logger.Debug("finish with no running task", zap.String("status", string(taskStatus)))
		return nil
	}
	if step := task.CurrentStep(); step != nil {
		step.Status = stepStatus
		if stepStatus == types.StepFailed && message != "" {
			step.FailureMessage = message
		}
	}
	task.Status = taskStatus
	task.Results = message
	task.RebuildTodos()
	id := task.ID
	tempDir := task.TempDir
	m.active = nil
	m.mu.Unlock()

	m.queue.RemoveSessions(id)
	if m.sessions != nil {
		m.sessions.EndAllSessionCaches(ctx, id)
	}
	m.props.ResetTaskCounters()
	m.props.ClearCurrent()

	if stream, ok := m.events.Get(id); ok {
		msg := fmt.Sprintf("Task %s: %s", taskStatus, message)
		if message == "" {
			msg = "Task " + string(taskStatus)
		}
		stream.Log(types.EventTask, msg, events.WithDisplay(msg))
	}
	m.persist(task)
	m.events.Drop(id)

	if taskStatus == types.TaskCompleted && tempDir != "" {
		if err := os.RemoveAll(tempDir); err != nil {
			m.logger.Warn("task temp dir cleanup failed",
				zap.String("task_id", id), zap.Error(err))
		}
	}
	m.logger.Info("task finished",
		zap.String("task_id", id),
		zap.String("status", string(taskStatus)))
	return nil
}

// SetTodos replaces the active task's todo list wholesale.
func (m *Manager) SetTodos(todos []types.TodoItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.Status.Terminal() {
		return ErrNoActiveTask
	}
	m.active.Todos = append([]types.TodoItem(nil), todos...)
	return nil
}

// Active returns a snapshot of the active task and whether one exists.
func (m *Manager) Active() (types.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return types.Task{}, false
	}
	return copyTask(m.active), true
}

// IsRunning reports whether taskID is the active, still-running task.
func (m *Manager) IsRunning(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && m.active.ID == taskID && m.active.Status == types.TaskRunning
}

func (m *Manager) persistActive() {
	m.mu.Lock()
	task := m.active
	m.mu.Unlock()
	if task != nil {
		m.persist(task)
	}
}

func (m *Manager) persist(task *types.Task) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.UpsertTaskLog(store.TaskLogFromTask(task)); err != nil {
		m.logger.Warn("failed to persist task log",
			zap.String("task_id", task.ID), zap.Error(err))
	}
}

// ensureCurrent enforces the single-current invariant at write time:
// duplicates demote, and when no step is current the first pending one
// is promoted.
func ensureCurrent(task *types.Task) {
	task.Normalize()
	if task.CurrentStep() != nil {
		return
	}
	if next := task.NextPending(); next != nil {
		next.Status = types.StepCurrent
	}
}

func currentIndex(task *types.Task) int {
	if step := task.CurrentStep(); step != nil {
		return step.StepIndex
	}
	return -1
}

func firstFailure(task *types.Task) string {
	for i := range task.Steps {
		if task.Steps[i].Status == types.StepFailed && task.Steps[i].FailureMessage != "" {
			return task.Steps[i].FailureMessage
		}
	}
	return "plan contains no runnable step"
}

// stepDescription is the trigger text for working on a step.
func stepDescription(step *types.PlanStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Work on step %d: %s.", step.StepIndex, step.StepName)
	if step.ActionInstruction != "" {
		b.WriteString("\n")
		b.WriteString(step.ActionInstruction)
	}
	if step.ValidationInstruction != "" {
		b.WriteString("\nValidate: ")
		b.WriteString(step.ValidationInstruction)
	}
	return b.String()
}

func copyTask(task *types.Task) types.Task {
	out := *task
	out.Steps = append([]types.PlanStep(nil), task.Steps...)
	out.Todos = append([]types.TodoItem(nil), task.Todos...)
	return out
}

// NewTaskID builds a filesystem-safe task id: a slug of the name plus
// a random suffix.
func NewTaskID(name string) string {
	return Slug(name) + "-" + uuid.NewString()[:8]
}

// Slug lowercases name and collapses everything outside [a-z0-9] into
// single dashes, capped at 40 characters.
func Slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= 40 {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "task"
	}
	return slug
}
