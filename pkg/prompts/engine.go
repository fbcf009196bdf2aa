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

import "strings"

// SystemFlags selects which sections the composed system prompt
// carries. Policy defaults off to save tokens.
type SystemFlags struct {
	RoleInfo            bool
	AgentInfo           bool
	AgentState          bool
	ConversationHistory bool
	EventStream         bool
	TaskState           bool
	Policy              bool
	Environment         bool
	BaseInstruction     bool
}

// UserFlags selects which sections the composed user prompt carries.
type UserFlags struct {
	Query          bool
	ExpectedOutput bool
}

// DefaultSystemFlags enables every system section except Policy.
func DefaultSystemFlags() SystemFlags {
	return SystemFlags{
		RoleInfo:            true,
		AgentInfo:           true,
		AgentState:          true,
		ConversationHistory: true,
		EventStream:         true,
		TaskState:           true,
		Environment:         true,
		BaseInstruction:     true,
	}
}

// DefaultUserFlags enables both user sections.
func DefaultUserFlags() UserFlags {
	return UserFlags{Query: true, ExpectedOutput: true}
}

// Inputs carries the section texts for one composition. Empty inputs
// drop their section even when the flag is on.
type Inputs struct {
	RoleInfo            string
	AgentInfo           string
	AgentState          string
	ConversationHistory string
	EventStream         string
	TaskState           string
	Policy              string
	Environment         string
	BaseInstruction     string

	Query          string
	ExpectedOutput string
}

// Engine composes system and user prompts from flagged sections. The
// composition is deterministic: fixed section order, no timestamps in
// the system portion, byte-identical output for identical inputs, so
// provider prefix caches hit across calls.
type Engine struct {
	system SystemFlags
	user   UserFlags
}

// NewEngine creates an engine with the default flags.
func NewEngine() *Engine {
	return &Engine{system: DefaultSystemFlags(), user: DefaultUserFlags()}
}

// NewEngineWithFlags creates an engine with explicit flags.
func NewEngineWithFlags(system SystemFlags, user UserFlags) *Engine {
	return &Engine{system: system, user: user}
}

// section pairs a header with its text; composition skips empty text.
type section struct {
	header string
	text   string
}

// Compose renders the two prompt strings for one call.
func (e *Engine) Compose(in Inputs) (system, user string) {
	sys := []section{
		{"# Role", pick(e.system.RoleInfo, in.RoleInfo)},
		{"# Agent", pick(e.system.AgentInfo, in.AgentInfo)},
		{"# Instructions", pick(e.system.BaseInstruction, in.BaseInstruction)},
		{"# Policy", pick(e.system.Policy, in.Policy)},
		{"# Environment", pick(e.system.Environment, in.Environment)},
		{"# Agent State", pick(e.system.AgentState, in.AgentState)},
		{"# Task", pick(e.system.TaskState, in.TaskState)},
		{"# Conversation", pick(e.system.ConversationHistory, in.ConversationHistory)},
		{"# Event Stream", pick(e.system.EventStream, in.EventStream)},
	}
	usr := []section{
		{"# Request", pick(e.user.Query, in.Query)},
		{"# Expected Output", pick(e.user.ExpectedOutput, in.ExpectedOutput)},
	}
	return join(sys), join(usr)
}

func pick(enabled bool, text string) string {
	if !enabled {
		return ""
	}
	return strings.TrimSpace(text)
}

func join(sections []section) string {
	var b strings.Builder
	for _, s := range sections {
		if s.text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.header)
		b.WriteByte('\n')
		b.WriteString(s.text)
	}
	return b.String()
}
