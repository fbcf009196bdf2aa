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
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/prompts"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Prompt asset names the loop renders.
const (
	PromptReasoning = "reasoning"
	PromptRoleInfo  = "role_info"
	PromptAgentInfo = "agent_info"
	PromptBaseRules = "base_instruction"
	PromptPolicy    = "policy"
)

// AssetSource resolves a prompt asset to its full text. *prompts.Registry
// satisfies it.
type AssetSource interface {
	Get(ctx context.Context, key string, vars map[string]any) (string, error)
}

// ContextBuilder composes the prompts the loop sends. System prompts
// hold only what is stable for the life of a session cache (identity,
// rules, environment, the task's name and instruction) so provider
// caches hit; everything that changes per call (step state, event
// stream, trigger text) travels in the user prompt.
type ContextBuilder struct {
	assets    AssetSource
	engine    *prompts.Engine
	logger    *zap.Logger
	workspace string
}

// NewContextBuilder creates a builder over the asset source. workspace
// is the data dir shown in the environment section.
func NewContextBuilder(assets AssetSource, engine *prompts.Engine, workspace string, logger *zap.Logger) *ContextBuilder {
	if engine == nil {
		engine = prompts.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextBuilder{assets: assets, engine: engine, logger: logger, workspace: workspace}
}

// TaskSystemPrompt is the system prompt that seeds a task's reasoning
// session cache. It must stay byte-identical across the task's calls.
func (b *ContextBuilder) TaskSystemPrompt(ctx context.Context, task *types.Task) string {
	in := b.baseInputs(ctx)
	if task != nil {
		in.TaskState = fmt.Sprintf("Task: %s\nInstruction: %s", task.Name, task.Instruction)
	}
	system, _ := b.engine.Compose(in)
	return system
}

// ConversationSystemPrompt is the stable system prompt for chat-mode
// calls.
func (b *ContextBuilder) ConversationSystemPrompt(ctx context.Context) string {
	system, _ := b.engine.Compose(b.baseInputs(ctx))
	return system
}

// ReasoningUserPrompt is the per-call payload of a reasoning turn: the
// live plan state, the recent event stream, and the trigger text,
// followed by the expected-output contract.
func (b *ContextBuilder) ReasoningUserPrompt(ctx context.Context, task *types.Task, trigger, eventStream string) string {
	var q strings.Builder
	if task != nil {
		q.WriteString(planState(task))
		q.WriteString("\n\n")
	}
	if eventStream != "" {
		q.WriteString(eventStream)
		q.WriteString("\n\n")
	}
	q.WriteString("Trigger: ")
	q.WriteString(trigger)

	_, user := b.engine.Compose(prompts.Inputs{
		Query:          q.String(),
		ExpectedOutput: b.asset(ctx, PromptReasoning),
	})
	return user
}

// ConversationQuery is the routing query for a chat trigger: recent
// conversation context plus the new input.
func (b *ContextBuilder) ConversationQuery(trigger, eventStream string) string {
	if eventStream == "" {
		return trigger
	}
	return eventStream + "\n\nNew input: " + trigger
}

func (b *ContextBuilder) baseInputs(ctx context.Context) prompts.Inputs {
	return prompts.Inputs{
		RoleInfo:        b.asset(ctx, PromptRoleInfo),
		AgentInfo:       b.asset(ctx, PromptAgentInfo),
		BaseInstruction: b.asset(ctx, PromptBaseRules),
		Policy:          b.asset(ctx, PromptPolicy),
		Environment:     b.environment(),
	}
}

func (b *ContextBuilder) asset(ctx context.Context, key string) string {
	text, err := b.assets.Get(ctx, key, nil)
	if err != nil {
		b.logger.Warn("prompt asset unavailable", zap.String("key", key), zap.Error(err))
		return ""
	}
	return text
}

// environment describes where the agent runs. No timestamps or
// counters: this text is part of every cached system prefix.
func (b *ContextBuilder) environment() string {
	return fmt.Sprintf("os: %s\narch: %s\nworkspace: %s", runtime.GOOS, runtime.GOARCH, b.workspace)
}

// planState renders the step table the model reasons over.
func planState(task *types.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan for %q (%s):", task.Name, task.Status)
	for i := range task.Steps {
		s := &task.Steps[i]
		fmt.Fprintf(&sb, "\n%d. [%s] %s", s.StepIndex, s.Status, s.StepName)
		if s.Status == types.StepCurrent && s.ActionInstruction != "" {
			fmt.Fprintf(&sb, "\n   instruction: %s", s.ActionInstruction)
		}
		if s.Status == types.StepCurrent && s.ValidationInstruction != "" {
			fmt.Fprintf(&sb, "\n   validate: %s", s.ValidationInstruction)
		}
		if s.Status == types.StepFailed && s.FailureMessage != "" {
			fmt.Fprintf(&sb, "\n   failure: %s", s.FailureMessage)
		}
	}
	return sb.String()
}
