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

package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/search"
)

// ErrActionNotFound is returned by Get for unregistered names. The
// wrapping error carries fuzzy near-miss suggestions when any exist.
var ErrActionNotFound = errors.New("action not found")

// ActionDirName is the subdirectory of the data dir holding action
// definitions, one JSON file per action.
const ActionDirName = "action"

// Handler is a native implementation for builtin actions. Builtins run
// in-process instead of spawning a subprocess.
type Handler func(ctx context.Context, input map[string]any) (map[string]any, error)

// Registry holds every known action, routes name lookups, and keeps
// the semantic index in sync so the router can search actions by
// meaning. Safe for concurrent use.
type Registry struct {
	logger *zap.Logger
	index  search.Index
	dir    string

	mu       sync.RWMutex
	actions  map[string]*Action
	handlers map[string]Handler
}

// NewRegistry creates an empty registry. dir is where non-builtin
// actions persist; empty disables persistence (tests). index may be
// nil to disable semantic search.
func NewRegistry(dir string, index search.Index, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:   logger,
		index:    index,
		dir:      dir,
		actions:  make(map[string]*Action),
		handlers: make(map[string]Handler),
	}
}

// LoadDir reads every *.json action under the registry's dir and
// registers it, rebuilding the semantic index entry for each. Files
// that fail to parse are skipped with a warning so one bad action
// cannot take the registry down. A missing dir is not an error.
func (r *Registry) LoadDir(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read action dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("skipping unreadable action file", zap.String("path", path), zap.Error(err))
			continue
		}
		var action Action
		if err := json.Unmarshal(data, &action); err != nil {
			r.logger.Warn("skipping malformed action file", zap.String("path", path), zap.Error(err))
			continue
		}
		if action.Name == "" {
			action.Name = nameFromFile(entry.Name())
		}
		if err := r.register(ctx, &action, nil, false); err != nil {
			r.logger.Warn("skipping invalid action", zap.String("path", path), zap.Error(err))
		}
	}
	r.logger.Info("action registry loaded", zap.Int("actions", r.Len()))
	return nil
}

// Register adds or replaces a disk-backed action and persists it.
func (r *Registry) Register(ctx context.Context, action *Action) error {
	return r.register(ctx, action, nil, true)
}

// RegisterBuiltin adds an action served by a native handler. Builtins
// are never persisted to disk.
func (r *Registry) RegisterBuiltin(ctx context.Context, action *Action, h Handler) error {
	if h == nil {
		return fmt.Errorf("builtin %q has no handler", action.Name)
	}
	return r.register(ctx, action, h, false)
}

func (r *Registry) register(ctx context.Context, action *Action, h Handler, persist bool) error {
	if err := action.Normalize(); err != nil {
		return err
	}
	r.mu.Lock()
	r.actions[action.Name] = action
	if h != nil {
		r.handlers[action.Name] = h
	}
	r.mu.Unlock()

	if r.index != nil {
		if err := r.index.Index(ctx, action.Name, action.Name); err != nil {
			return fmt.Errorf("index action %q: %w", action.Name, err)
		}
	}
	if persist && r.dir != "" {
		if err := r.save(action); err != nil {
			return fmt.Errorf("persist action %q: %w", action.Name, err)
		}
	}
	return nil
}

func (r *Registry) save(action *Action) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(action, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(r.dir, fileFromName(action.Name))
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Get returns the action by exact name. Unknown names return an error
// wrapping ErrActionNotFound, with up to three fuzzy suggestions drawn
// from the registered names.
func (r *Registry) Get(name string) (*Action, error) {
	r.mu.RLock()
	action, ok := r.actions[name]
	r.mu.RUnlock()
	if ok {
		return action, nil
	}
	suggestions := r.suggest(name, 3)
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrActionNotFound, name)
	}
	return nil, fmt.Errorf("%w: %q (did you mean %s?)", ErrActionNotFound, name, strings.Join(quoteAll(suggestions), ", "))
}

// Handler returns the native handler registered for name, if any.
func (r *Registry) Handler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Remove drops an action and its index entry. Disk files are left in
// place so a removal is recoverable by reloading.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	delete(r.actions, name)
	delete(r.handlers, name)
	r.mu.Unlock()
	if r.index != nil {
		return r.index.Remove(ctx, name)
	}
	return nil
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered actions, sorted by name.
func (r *Registry) All() []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Action, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len reports the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Search returns up to k actions semantically similar to query,
// best first. Ids that no longer resolve are dropped.
func (r *Registry) Search(ctx context.Context, query string, k int) ([]*Action, error) {
	if r.index == nil {
		return nil, nil
	}
	results, err := r.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Action, 0, len(results))
	for _, res := range results {
		if a, ok := r.actions[res.ID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Registry) suggest(name string, k int) []string {
	names := r.Names()
	matches := fuzzy.Find(name, names)
	if len(matches) > k {
		matches = matches[:k]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

// nameFromFile recovers an action name from its file stem; file names
// use underscores where action names use spaces.
func nameFromFile(file string) string {
	stem := strings.TrimSuffix(file, ".json")
	return strings.ReplaceAll(stem, "_", " ")
}

func fileFromName(name string) string {
	return strings.ReplaceAll(name, " ", "_") + ".json"
}
