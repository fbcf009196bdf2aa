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

// Package router turns an action query into one concrete action choice.
// It assembles a mode-dependent candidate list, asks the model to pick,
// and re-prompts with parser feedback when the reply is malformed or
// names something outside the list.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/jsonx"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/actions"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

// Mode selects the candidate pool.
type Mode string

const (
	// ModeConversation offers only the builtin allowlist.
	ModeConversation Mode = "conversation"
	// ModeTaskCLI offers CLI-visible builtins plus search hits.
	ModeTaskCLI Mode = "task_cli"
	// ModeTaskGUI offers GUI-visible search hits only.
	ModeTaskGUI Mode = "task_gui"
	// ModeSimpleTask is ModeTaskCLI without todo management.
	ModeSimpleTask Mode = "simple_task"
)

// PromptSelectAction is the prompt asset the router renders.
const PromptSelectAction = "select_action"

// DefaultSearchK is how many semantic hits join the candidate list.
const DefaultSearchK = 5

// DefaultRetries bounds both the parse-retry and invalid-name loops.
const DefaultRetries = 3

// Selection is the model's parsed choice.
type Selection struct {
	ActionName string         `json:"action_name"`
	Parameters map[string]any `json:"parameters"`
}

// NewActionError signals that the model declined every candidate and
// wants a new action created for the query. It is a routing outcome,
// not a failure.
type NewActionError struct {
	Query string
}

func (e *NewActionError) Error() string {
	return fmt.Sprintf("no candidate fits %q; a new action is needed", e.Query)
}

// Catalog is the registry surface the router reads. *actions.Registry
// satisfies it.
type Catalog interface {
	Get(name string) (*actions.Action, error)
	Search(ctx context.Context, query string, k int) ([]*actions.Action, error)
}

// Generator is the LLM surface. Conversation-mode selections are
// stateless; in-task selections ride the task's action-selection
// session cache. *llm.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, user string) (llm.Result, error)
	GenerateWithSession(ctx context.Context, taskID string, callType llm.CallType, user, systemForNew string) (llm.Result, error)
}

// Renderer resolves the selection prompt asset.
type Renderer interface {
	Render(name string, vars map[string]any) (system, user string, err error)
}

// Router picks actions.
type Router struct {
	catalog  Catalog
	gen      Generator
	renderer Renderer
	logger   *zap.Logger
	searchK  int
	retries  int
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSearchK sets how many semantic hits join the candidates.
func WithSearchK(k int) Option {
	return func(r *Router) {
		if k > 0 {
			r.searchK = k
		}
	}
}

// WithRetries sets the retry budget for malformed and invalid replies.
func WithRetries(n int) Option {
	return func(r *Router) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// New creates a Router over the given catalog, generator, and prompt
// renderer.
func New(catalog Catalog, gen Generator, renderer Renderer, opts ...Option) *Router {
	r := &Router{
		catalog:  catalog,
		gen:      gen,
		renderer: renderer,
		logger:   zap.NewNop(),
		searchK:  DefaultSearchK,
		retries:  DefaultRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request is one routing call.
type Request struct {
	Mode Mode
	// SessionID keys the action-selection session cache in task modes.
	SessionID string
	// Query is the reasoning's action query, or the raw trigger
	// description in conversation mode.
	Query string
}

// Route asks the model to pick one action from the mode's candidates.
// An empty action_name in the reply returns a *NewActionError carrying
// the query; the selection still carries any parameters the model
// proposed.
func (r *Router) Route(ctx context.Context, req Request) (*actions.Action, *Selection, error) {
	candidates, err := r.Candidates(ctx, req.Mode, req.Query)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("no candidate actions for mode %s", req.Mode)
	}

	system, user, err := r.renderer.Render(PromptSelectAction, map[string]any{
		"query":      req.Query,
		"candidates": FormatCandidates(candidates),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("render selection prompt: %w", err)
	}

	prompt := user
	parseTries, nameTries := 0, 0
	for {
		res, err := r.generate(ctx, req, prompt, system)
		if err != nil {
			return nil, nil, fmt.Errorf("action selection call: %w", err)
		}

		var sel Selection
		if err := jsonx.Decode(res.Content, &sel); err != nil {
			parseTries++
			if parseTries > r.retries {
				return nil, nil, fmt.Errorf("action selection unparseable after %d retries: %w", r.retries, err)
			}
			r.logger.Warn("action selection parse failure",
				zap.Int("attempt", parseTries), zap.Error(err))
			prompt = user + "\n\n" + jsonx.ParseFeedback(res.Content, err)
			continue
		}
		if sel.Parameters == nil {
			sel.Parameters = map[string]any{}
		}

		name := strings.TrimSpace(sel.ActionName)
		if name == "" {
			return nil, &sel, &NewActionError{Query: req.Query}
		}
		if act := findCandidate(candidates, name); act != nil {
			sel.ActionName = act.Name
			return act, &sel, nil
		}

		nameTries++
		if nameTries > r.retries {
			return nil, nil, fmt.Errorf("%w: model chose %q, not a candidate", actions.ErrActionNotFound, name)
		}
		r.logger.Warn("action selection named a non-candidate",
			zap.String("chosen", name), zap.Int("attempt", nameTries))
		prompt = user + "\n\n" + nameFeedback(name, candidates)
	}
}

func (r *Router) generate(ctx context.Context, req Request, user, system string) (llm.Result, error) {
	if req.Mode == ModeConversation {
		return r.gen.Generate(ctx, system, user)
	}
	callType := llm.CallActionSelection
	if req.Mode == ModeTaskGUI {
		callType = llm.CallGUIActionSelection
	}
	return r.gen.GenerateWithSession(ctx, req.SessionID, callType, user, system)
}

// Candidates assembles the candidate pool for a mode. Builtins come
// first in registration order, then semantic hits in rank order,
// deduplicated by name.
func (r *Router) Candidates(ctx context.Context, mode Mode, query string) ([]*actions.Action, error) {
	switch mode {
	case ModeConversation:
		return r.builtinSet(nil, ""), nil
	case ModeTaskCLI:
		return r.taskCandidates(ctx, query, actions.ModeCLI, []string{actions.BuiltinIgnore})
	case ModeSimpleTask:
		return r.taskCandidates(ctx, query, actions.ModeCLI,
			[]string{actions.BuiltinIgnore, actions.BuiltinUpdateTodos})
	case ModeTaskGUI:
		hits, err := r.searchVisible(ctx, query, actions.ModeGUI)
		if err != nil {
			return nil, err
		}
		return hits, nil
	default:
		return nil, fmt.Errorf("unknown router mode %q", mode)
	}
}

func (r *Router) taskCandidates(ctx context.Context, query string, visible actions.Mode, deny []string) ([]*actions.Action, error) {
	out := r.builtinSet(deny, visible)
	hits, err := r.searchVisible(ctx, query, visible)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(out))
	for _, a := range out {
		seen[strings.ToLower(a.Name)] = true
	}
	for _, a := range hits {
		if denied(a.Name, deny) || seen[strings.ToLower(a.Name)] {
			continue
		}
		seen[strings.ToLower(a.Name)] = true
		out = append(out, a)
	}
	return out, nil
}

// builtinSet fetches the builtins that exist in the catalog, applying
// the denylist and visibility filter. A missing builtin is skipped; the
// wiring registers them at startup, so absence means a stripped-down
// test registry.
func (r *Router) builtinSet(deny []string, visible actions.Mode) []*actions.Action {
	var out []*actions.Action
	for _, name := range actions.BuiltinNames() {
		if denied(name, deny) {
			continue
		}
		act, err := r.catalog.Get(name)
		if err != nil {
			continue
		}
		if visible != "" && !act.VisibleIn(visible) {
			continue
		}
		out = append(out, act)
	}
	return out
}

func (r *Router) searchVisible(ctx context.Context, query string, visible actions.Mode) ([]*actions.Action, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	hits, err := r.catalog.Search(ctx, query, r.searchK)
	if err != nil {
		r.logger.Warn("action search failed", zap.String("query", query), zap.Error(err))
		return nil, nil
	}
	out := make([]*actions.Action, 0, len(hits))
	for _, a := range hits {
		if a.VisibleIn(visible) {
			out = append(out, a)
		}
	}
	return out, nil
}

func denied(name string, deny []string) bool {
	for _, d := range deny {
		if strings.EqualFold(name, d) {
			return true
		}
	}
	return false
}

func findCandidate(candidates []*actions.Action, name string) *actions.Action {
	for _, a := range candidates {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

func nameFeedback(chosen string, candidates []*actions.Action) string {
	names := make([]string, len(candidates))
	for i, a := range candidates {
		names[i] = a.Name
	}
	return fmt.Sprintf(
		"%q is not one of the candidates. Choose exactly one of: %s. Or return an empty action_name if none fits.",
		chosen, strings.Join(names, ", "))
}

// FormatCandidates renders the candidate block shown to the model: one
// entry per action with its description and input schema.
func FormatCandidates(candidates []*actions.Action) string {
	var b strings.Builder
	for i, a := range candidates {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- name: %s\n  description: %s\n", a.Name, a.Description)
		if len(a.InputSchema) == 0 {
			b.WriteString("  inputs: none\n")
			continue
		}
		b.WriteString("  inputs:\n")
		for _, field := range sortedFields(a.InputSchema) {
			spec := a.InputSchema[field]
			fmt.Fprintf(&b, "    %s (%s): %s\n", field, spec.Type, spec.Description)
		}
	}
	return b.String()
}

func sortedFields(schema map[string]actions.SchemaField) []string {
	fields := make([]string, 0, len(schema))
	for name := range schema {
		fields = append(fields, name)
	}
	// Deterministic prompt text keeps session caches stable.
	sort.Strings(fields)
	return fields
}

// IsNewAction reports whether err is the create-new-action signal and
// returns it.
func IsNewAction(err error) (*NewActionError, bool) {
	var na *NewActionError
	if errors.As(err, &na) {
		return na, true
	}
	return nil, false
}
