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

// Package planner turns a task instruction into a step plan by asking
// the LLM, optionally seeding the prompt with similar past task
// documents. Output that survives the parse-retry loop becomes the
// task's steps; output that does not becomes a one-step failed plan so
// the loop can surface the diagnostic instead of stalling.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/jsonx"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Prompt asset names the planner renders.
const (
	PromptPlanTask   = "plan_task"
	PromptUpdatePlan = "update_plan"
)

// DefaultParseRetries is how many times a malformed plan is re-asked
// with parser feedback before falling back.
const DefaultParseRetries = 3

// Plan is the planner's JSON output.
type Plan struct {
	Goal         string           `json:"goal"`
	InputsParams map[string]any   `json:"inputs_params,omitempty"`
	Context      string           `json:"context,omitempty"`
	Steps        []types.PlanStep `json:"steps"`
}

// Normalize reindexes steps sequentially and defaults blank statuses
// to pending. The task manager decides which step becomes current.
func (p *Plan) Normalize() {
	for i := range p.Steps {
		p.Steps[i].StepIndex = i
		p.Steps[i].StepName = strings.TrimSpace(p.Steps[i].StepName)
		if p.Steps[i].Status == "" {
			p.Steps[i].Status = types.StepPending
		}
	}
}

// Generator is the LLM surface the planner calls. *llm.Gateway
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, user string) (llm.Result, error)
}

// Renderer resolves a named prompt asset into its system and user
// parts with variables applied.
type Renderer interface {
	Render(name string, vars map[string]any) (system, user string, err error)
}

// Planner builds and revises task plans.
type Planner struct {
	gen      Generator
	renderer Renderer
	fewshot  *FewShot
	logger   *zap.Logger
	retries  int
}

// Option configures a Planner.
type Option func(*Planner)

// WithFewShot attaches a retrieval source for example plans.
func WithFewShot(f *FewShot) Option {
	return func(p *Planner) { p.fewshot = f }
}

// WithLogger sets the planner logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRetries overrides the parse retry count.
func WithRetries(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.retries = n
		}
	}
}

// New creates a planner over the generator and prompt renderer.
func New(gen Generator, renderer Renderer, opts ...Option) *Planner {
	p := &Planner{
		gen:      gen,
		renderer: renderer,
		logger:   zap.NewNop(),
		retries:  DefaultParseRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan produces a fresh plan for the named task. Unparseable model
// output degrades to Fallback rather than an error so the task always
// has steps to report against.
func (p *Planner) Plan(ctx context.Context, name, instruction string) (*Plan, error) {
	examples := ""
	if p.fewshot != nil {
		examples = p.fewshot.Examples(ctx, name+"\n\n"+instruction)
	}
	system, user, err := p.renderer.Render(PromptPlanTask, map[string]any{
		"task_name":   name,
		"instruction": instruction,
		"examples":    examples,
	})
	if err != nil {
		return nil, fmt.Errorf("render plan prompt: %w", err)
	}
	plan, perr := p.generatePlan(ctx, system, user)
	if perr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("plan output unusable, building fallback",
			zap.String("task", name), zap.Error(perr))
		return Fallback(name, instruction, perr), nil
	}
	return plan, nil
}

// Update revises an existing task's plan against recent events. The
// same fallback policy applies: a revision that cannot be parsed
// replaces the plan with one failed step carrying the diagnostic.
func (p *Planner) Update(ctx context.Context, task *types.Task, eventStream string, advanceNext bool) (*Plan, error) {
	taskJSON, err := json.MarshalIndent(struct {
		Name        string           `json:"name"`
		Instruction string           `json:"instruction"`
		Steps       []types.PlanStep `json:"steps"`
	}{task.Name, task.Instruction, task.Steps}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal task for replan: %w", err)
	}
	system, user, err := p.renderer.Render(PromptUpdatePlan, map[string]any{
		"task":         string(taskJSON),
		"event_stream": eventStream,
		"advance_next": advanceNext,
	})
	if err != nil {
		return nil, fmt.Errorf("render update prompt: %w", err)
	}
	plan, perr := p.generatePlan(ctx, system, user)
	if perr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("plan update unusable, building fallback",
			zap.String("task", task.ID), zap.Error(perr))
		return Fallback(task.Name, task.Instruction, perr), nil
	}
	return plan, nil
}

// generatePlan runs the parse-retry loop: each failed decode re-asks
// with a feedback block echoing the bad output and the parser error.
func (p *Planner) generatePlan(ctx context.Context, system, user string) (*Plan, error) {
	prompt := user
	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result, err := p.gen.Generate(ctx, system, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		var plan Plan
		if err := jsonx.Decode(result.Content, &plan); err != nil {
			lastErr = err
			prompt = user + jsonx.ParseFeedback(result.Content, err)
			p.logger.Debug("plan parse failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if len(plan.Steps) == 0 {
			lastErr = fmt.Errorf("plan contained no steps")
			prompt = user + jsonx.ParseFeedback(result.Content, lastErr)
			continue
		}
		plan.Normalize()
		return &plan, nil
	}
	return nil, fmt.Errorf("plan generation failed after %d attempts: %w", p.retries, lastErr)
}

// Fallback is the minimal plan used when the model never produced a
// usable one: a single already-failed step holding the diagnostic, so
// downstream sees a failed task instead of an empty plan.
func Fallback(name, instruction string, cause error) *Plan {
	msg := "planner produced no usable plan"
	if cause != nil {
		msg = cause.Error()
	}
	return &Plan{
		Goal: instruction,
		Steps: []types.PlanStep{{
			StepIndex:         0,
			StepName:          "plan " + name,
			Description:       "Placeholder step recording a planning failure.",
			ActionInstruction: instruction,
			Status:            types.StepFailed,
			FailureMessage:    msg,
		}},
	}
}
