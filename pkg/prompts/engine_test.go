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
package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeSectionOrderAndFlags(t *testing.T) {
	e := NewEngine()
	in := Inputs{
		RoleInfo:        "You are the assistant.",
		AgentInfo:       "wca v1",
		AgentState:      "idle",
		EventStream:     "Recent Event:\n12:00:00 [task]: created",
		TaskState:       `{"task_id":"t1"}`,
		Policy:          "never shown by default",
		BaseInstruction: "Follow the plan.",
		Query:           "what next?",
		ExpectedOutput:  `{"reasoning": "...", "action_query": "..."}`,
	}

	system, user := e.Compose(in)

	// Fixed order: Role before Instructions before Task before Event Stream.
	role := strings.Index(system, "# Role")
	instr := strings.Index(system, "# Instructions")
	task := strings.Index(system, "# Task")
	stream := strings.Index(system, "# Event Stream")
	assert.True(t, role >= 0 && role < instr && instr < task && task < stream,
		"section order wrong:\n%s", system)

	// Policy is off by default.
	assert.NotContains(t, system, "never shown by default")

	assert.Contains(t, user, "# Request\nwhat next?")
	assert.Contains(t, user, "# Expected Output")
}

func TestComposeSkipsEmptyInputs(t *testing.T) {
	e := NewEngine()
	system, user := e.Compose(Inputs{RoleInfo: "role only", Query: "q"})

	assert.Equal(t, "# Role\nrole only", system)
	assert.Equal(t, "# Request\nq", user)
}

func TestComposeDeterministic(t *testing.T) {
	e := NewEngine()
	in := Inputs{
		RoleInfo:    "r",
		AgentState:  "running task t1",
		EventStream: "Recent Event:\nnone",
		Query:       "go",
	}
	s1, u1 := e.Compose(in)
	s2, u2 := e.Compose(in)
	assert.Equal(t, s1, s2, "system prompt must be byte-identical for cache hits")
	assert.Equal(t, u1, u2)
}

func TestComposePolicyFlagEnables(t *testing.T) {
	flags := DefaultSystemFlags()
	flags.Policy = true
	e := NewEngineWithFlags(flags, DefaultUserFlags())

	system, _ := e.Compose(Inputs{Policy: "be careful"})
	assert.Contains(t, system, "# Policy\nbe careful")
}
