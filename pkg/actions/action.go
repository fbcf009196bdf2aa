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

// Package actions implements the action registry and executor. Actions
// are JSON documents under <data_dir>/action/ describing either an
// atomic shell body or a divisible sequence of sub-actions; the
// executor runs atomic bodies in a sandboxed subprocess rooted at the
// task's temp dir and records every run in the persistent history log.
package actions

import (
	"fmt"
	"strings"
)

// ActionType distinguishes runnable bodies from composites.
type ActionType string

const (
	// TypeAtomic actions carry an executable body.
	TypeAtomic ActionType = "atomic"
	// TypeDivisible actions name sub-actions executed in order.
	TypeDivisible ActionType = "divisible"
)

// Mode scopes where an action is offered to the router.
type Mode string

const (
	ModeCLI Mode = "CLI"
	ModeGUI Mode = "GUI"
	ModeAll Mode = "ALL"
)

// ExecutionModeSandboxed is the default and currently only execution
// mode: bodies run in a separate process confined to the task dir.
const ExecutionModeSandboxed = "sandboxed"

// SchemaField describes one input or output field of an action.
type SchemaField struct {
	Type        string `json:"type"`
	Example     any    `json:"example,omitempty"`
	Description string `json:"description,omitempty"`
}

// Observer is an optional post-execution check. Its code runs like a
// body, reads the action output on stdin, and prints
// {"success": bool, "message": string}.
type Observer struct {
	Code             string  `json:"code"`
	MaxRetries       int     `json:"max_retries"`
	RetryIntervalSec float64 `json:"retry_interval_sec"`
	MaxTotalTimeSec  float64 `json:"max_total_time_sec"`
}

// PlatformOverride replaces parts of an action on a specific GOOS.
type PlatformOverride struct {
	Body         string                 `json:"body,omitempty"`
	InputSchema  map[string]SchemaField `json:"input_schema,omitempty"`
	OutputSchema map[string]SchemaField `json:"output_schema,omitempty"`
}

// Action is the declarative unit the agent routes to and executes.
type Action struct {
	Name              string                      `json:"name"`
	Description       string                      `json:"description"`
	Type              ActionType                  `json:"type"`
	Body              string                      `json:"body,omitempty"`
	SubActions        []string                    `json:"sub_actions,omitempty"`
	InputSchema       map[string]SchemaField      `json:"input_schema,omitempty"`
	OutputSchema      map[string]SchemaField      `json:"output_schema,omitempty"`
	Observer          *Observer                   `json:"observer,omitempty"`
	Mode              Mode                        `json:"mode,omitempty"`
	Platforms         []string                    `json:"platforms,omitempty"`
	PlatformOverrides map[string]PlatformOverride `json:"platform_overrides,omitempty"`
	ExecutionMode     string                      `json:"execution_mode,omitempty"`
}

// Normalize fills defaults and reports the first structural problem.
func (a *Action) Normalize() error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return fmt.Errorf("action has no name")
	}
	if a.Type == "" {
		if len(a.SubActions) > 0 {
			a.Type = TypeDivisible
		} else {
			a.Type = TypeAtomic
		}
	}
	if a.ExecutionMode == "" {
		a.ExecutionMode = ExecutionModeSandboxed
	}
	switch a.Type {
	case TypeAtomic:
		// Builtins have native handlers instead of bodies, so an
		// empty body is checked at execution time, not here.
	case TypeDivisible:
		if len(a.SubActions) == 0 {
			return fmt.Errorf("divisible action %q has no sub_actions", a.Name)
		}
	default:
		return fmt.Errorf("action %q has unknown type %q", a.Name, a.Type)
	}
	return nil
}

// SupportsPlatform reports whether the action may run on goos. An
// empty allowlist means every platform.
func (a *Action) SupportsPlatform(goos string) bool {
	if len(a.Platforms) == 0 {
		return true
	}
	for _, p := range a.Platforms {
		if strings.EqualFold(p, goos) {
			return true
		}
	}
	return false
}

// ForPlatform returns a copy with the goos override applied, replacing
// the body and schemas where the override provides them.
func (a *Action) ForPlatform(goos string) *Action {
	out := *a
	ov, ok := a.PlatformOverrides[goos]
	if !ok {
		return &out
	}
	if ov.Body != "" {
		out.Body = ov.Body
	}
	if ov.InputSchema != nil {
		out.InputSchema = ov.InputSchema
	}
	if ov.OutputSchema != nil {
		out.OutputSchema = ov.OutputSchema
	}
	return &out
}

// VisibleIn reports whether the router may offer the action in mode.
// Actions without a mode, and mode ALL, are visible everywhere.
func (a *Action) VisibleIn(mode Mode) bool {
	if a.Mode == "" || a.Mode == ModeAll || mode == "" {
		return true
	}
	return a.Mode == mode
}
