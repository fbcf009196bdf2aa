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

package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/search"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/store"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

type scriptedGen struct {
	replies []string
	prompts []string
}

func (g *scriptedGen) Generate(ctx context.Context, system, user string) (llm.Result, error) {
	g.prompts = append(g.prompts, user)
	if len(g.replies) == 0 {
		return llm.Result{}, nil
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return llm.Result{Content: reply, TokensUsed: 10}, nil
}

type passthroughRenderer struct {
	lastVars map[string]any
}

func (r *passthroughRenderer) Render(name string, vars map[string]any) (string, string, error) {
	r.lastVars = vars
	return "system for " + name, fmt.Sprintf("user for %s: %v", name, vars["instruction"]), nil
}

const goodPlan = `{
  "goal": "archive the inbox",
  "inputs_params": {"folder": "inbox"},
  "context": "mail cleanup",
  "steps": [
    {"step_name": "list messages", "description": "enumerate", "action_instruction": "list them"},
    {"step_name": "archive", "description": "move", "action_instruction": "archive each"}
  ]
}`

func TestPlanParsesFirstTry(t *testing.T) {
	gen := &scriptedGen{replies: []string{goodPlan}}
	p := New(gen, &passthroughRenderer{})

	plan, err := p.Plan(context.Background(), "archive inbox", "archive everything in the inbox")
	require.NoError(t, err)
	assert.Equal(t, "archive the inbox", plan.Goal)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 0, plan.Steps[0].StepIndex)
	assert.Equal(t, 1, plan.Steps[1].StepIndex)
	assert.Equal(t, types.StepPending, plan.Steps[0].Status)
	assert.Len(t, gen.prompts, 1)
}

func TestPlanRetriesWithFeedback(t *testing.T) {
	gen := &scriptedGen{replies: []string{"sure, here is the plan!", goodPlan}}
	p := New(gen, &passthroughRenderer{})

	plan, err := p.Plan(context.Background(), "archive inbox", "archive everything")
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
	require.Len(t, gen.prompts, 2)
	// The retry prompt carries the offending output back to the model.
	assert.Contains(t, gen.prompts[1], "sure, here is the plan!")
}

func TestPlanFallsBackAfterRetries(t *testing.T) {
	gen := &scriptedGen{replies: []string{"nope", "still nope", "}{"}}
	p := New(gen, &passthroughRenderer{})

	plan, err := p.Plan(context.Background(), "archive inbox", "archive everything")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, types.StepFailed, plan.Steps[0].Status)
	assert.NotEmpty(t, plan.Steps[0].FailureMessage)
	assert.Equal(t, "archive everything", plan.Steps[0].ActionInstruction)
	assert.Len(t, gen.prompts, 3)
}

func TestPlanEmptyStepsRetries(t *testing.T) {
	gen := &scriptedGen{replies: []string{`{"goal": "g", "steps": []}`, goodPlan}}
	p := New(gen, &passthroughRenderer{})

	plan, err := p.Plan(context.Background(), "t", "i")
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
}

func TestPlanIncludesFewShotExamples(t *testing.T) {
	ctx := context.Background()
	idx, err := search.NewChromem("", "docs-test", search.NewHashEmbedder(0))
	require.NoError(t, err)
	docs := []store.TaskDocument{
		{ID: "archive-mail", Name: "archive mail", Body: "list, then archive each message"},
		{ID: "resize-images", Name: "resize images", Body: "batch resize with convert"},
	}
	require.NoError(t, IndexDocuments(ctx, idx, docs))

	rend := &passthroughRenderer{}
	gen := &scriptedGen{replies: []string{goodPlan}}
	p := New(gen, rend, WithFewShot(NewFewShot(idx, docs, 1, nil)))

	_, err = p.Plan(ctx, "archive mail", "archive all mail in the inbox")
	require.NoError(t, err)
	examples, _ := rend.lastVars["examples"].(string)
	assert.Contains(t, examples, "archive mail")
	assert.NotContains(t, examples, "resize images")
}

func TestUpdateParsesPlan(t *testing.T) {
	task := &types.Task{
		ID:          "task-archive-12345678",
		Name:        "archive inbox",
		Instruction: "archive everything",
		Steps: []types.PlanStep{
			{StepIndex: 0, StepName: "list messages", Status: types.StepCompleted},
			{StepIndex: 1, StepName: "archive", Status: types.StepCurrent},
		},
	}
	gen := &scriptedGen{replies: []string{goodPlan}}
	p := New(gen, &passthroughRenderer{})

	plan, err := p.Update(context.Background(), task, "recent events here", true)
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
}

func TestUpdateFallsBack(t *testing.T) {
	task := &types.Task{ID: "task-x-00000000", Name: "x", Instruction: "do x"}
	gen := &scriptedGen{replies: []string{"a", "b", "c"}}
	p := New(gen, &passthroughRenderer{})

	plan, err := p.Update(context.Background(), task, "", false)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, types.StepFailed, plan.Steps[0].Status)
}

func TestPlanHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &scriptedGen{replies: []string{goodPlan}}
	p := New(gen, &passthroughRenderer{})

	_, err := p.Plan(ctx, "t", "i")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFewShotEmptyIndex(t *testing.T) {
	f := NewFewShot(nil, nil, 0, nil)
	assert.Empty(t, f.Examples(context.Background(), "anything"))
}
