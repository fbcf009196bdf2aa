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
	"sync"
	"sync/atomic"
)

// Budget floors. Configured values below these are raised to them.
const (
	MinActionsPerTask = 5
	MinTokensPerTask  = 100000
)

// AgentProperties is the process-wide mutable state of the agent:
// which task and step are active, and how much of the per-task action
// and token budgets has been spent. Counters are safe for concurrent
// use; the task/step fields are guarded for readers like the progress
// feed.
type AgentProperties struct {
	mu               sync.RWMutex
	currentTaskID    string
	currentStepIndex int

	actionCount atomic.Int64
	tokenCount  atomic.Int64

	maxActionsPerTask int64
	maxTokensPerTask  int64
}

// NewAgentProperties builds properties with the given per-task
// budgets, applying the floors.
func NewAgentProperties(maxActions, maxTokens int) *AgentProperties {
	if maxActions < MinActionsPerTask {
		maxActions = MinActionsPerTask
	}
	if maxTokens < MinTokensPerTask {
		maxTokens = MinTokensPerTask
	}
	p := &AgentProperties{
		maxActionsPerTask: int64(maxActions),
		maxTokensPerTask:  int64(maxTokens),
		currentStepIndex:  -1,
	}
	return p
}

// CurrentTaskID returns the active task id, empty when idle.
func (p *AgentProperties) CurrentTaskID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTaskID
}

// CurrentStepIndex returns the active step index, -1 when none.
func (p *AgentProperties) CurrentStepIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentStepIndex
}

// SetCurrent records the active task and step.
func (p *AgentProperties) SetCurrent(taskID string, stepIndex int) {
	p.mu.Lock()
	p.currentTaskID = taskID
	p.currentStepIndex = stepIndex
	p.mu.Unlock()
}

// ClearCurrent resets the active task and step.
func (p *AgentProperties) ClearCurrent() {
	p.SetCurrent("", -1)
}

// AddActions bumps the action counter and returns the new value.
func (p *AgentProperties) AddActions(n int) int64 {
	return p.actionCount.Add(int64(n))
}

// AddTokens bumps the token counter and returns the new value.
func (p *AgentProperties) AddTokens(n int) int64 {
	return p.tokenCount.Add(int64(n))
}

// ActionCount returns the actions spent on the current task.
func (p *AgentProperties) ActionCount() int64 { return p.actionCount.Load() }

// TokenCount returns the tokens spent on the current task.
func (p *AgentProperties) TokenCount() int64 { return p.tokenCount.Load() }

// MaxActionsPerTask returns the action budget.
func (p *AgentProperties) MaxActionsPerTask() int64 { return p.maxActionsPerTask }

// MaxTokensPerTask returns the token budget.
func (p *AgentProperties) MaxTokensPerTask() int64 { return p.maxTokensPerTask }

// ActionBudgetRatio returns spent/budget for actions.
func (p *AgentProperties) ActionBudgetRatio() float64 {
	return float64(p.actionCount.Load()) / float64(p.maxActionsPerTask)
}

// TokenBudgetRatio returns spent/budget for tokens.
func (p *AgentProperties) TokenBudgetRatio() float64 {
	return float64(p.tokenCount.Load()) / float64(p.maxTokensPerTask)
}

// ResetTaskCounters zeroes both budget counters. Called on task
// boundaries.
func (p *AgentProperties) ResetTaskCounters() {
	p.actionCount.Store(0)
	p.tokenCount.Store(0)
}
