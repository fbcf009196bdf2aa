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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

func newTestBuilder() *ContextBuilder {
	return NewContextBuilder(testAssets(), nil, "/data/wca", nil)
}

func TestTaskSystemPromptIsStable(t *testing.T) {
	b := newTestBuilder()
	task := runningTask("t-1")
	task.Instruction = "Write the quarterly report."

	first := b.TaskSystemPrompt(context.Background(), &task)
	require.NotEmpty(t, first)
	assert.Contains(t, first, "white-collar agent")
	assert.Contains(t, first, "Task: report")
	assert.Contains(t, first, "Write the quarterly report.")
	assert.Contains(t, first, "workspace: /data/wca")

	// Step progress must not leak into the cached prefix.
	task.Steps[0].Status = types.StepCompleted
	task.Steps[1].Status = types.StepCurrent
	second := b.TaskSystemPrompt(context.Background(), &task)
	assert.Equal(t, first, second, "system prompt stays byte-identical while the task runs")
	assert.NotContains(t, first, "collect")
}

func TestReasoningUserPromptCarriesLiveState(t *testing.T) {
	b := newTestBuilder()
	task := runningTask("t-1")
	task.Steps[1].Status = types.StepFailed
	task.Steps[1].FailureMessage = "file not found"

	user := b.ReasoningUserPrompt(context.Background(), &task,
		"Work on step 0: collect.", "[1] task: Task created")

	assert.Contains(t, user, "# Request")
	assert.Contains(t, user, "0. [current] collect")
	assert.Contains(t, user, "instruction: gather the numbers")
	assert.Contains(t, user, "failure: file not found")
	assert.Contains(t, user, "[1] task: Task created")
	assert.Contains(t, user, "Trigger: Work on step 0: collect.")
	assert.Contains(t, user, "# Expected Output")
	assert.Contains(t, user, "action_query")
}

func TestConversationQuery(t *testing.T) {
	b := newTestBuilder()

	assert.Equal(t, "hi", b.ConversationQuery("hi", ""))

	q := b.ConversationQuery("and now?", "[1] message: hello")
	assert.Contains(t, q, "[1] message: hello")
	assert.Contains(t, q, "New input: and now?")
}

func TestMissingAssetDegradesToEmptySection(t *testing.T) {
	b := NewContextBuilder(assetStub{}, nil, "/data", nil)
	system := b.ConversationSystemPrompt(context.Background())
	assert.NotContains(t, system, "# Role")
	assert.Contains(t, system, "# Environment")
}
