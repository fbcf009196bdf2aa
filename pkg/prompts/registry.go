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

// Package prompts holds the prompt assets and the context engine.
// Prompts are data, not code: YAML files keyed by name, carrying a
// system and a user template with {{.var}} placeholders. The binary
// ships a default set; a prompts directory overlays it and can be
// hot-reloaded, so tuning never needs a rebuild.
package prompts

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Asset is one named prompt: metadata plus the two template halves.
// Either half may be empty; static text blocks live in System alone.
type Asset struct {
	Key         string   `yaml:"key"`
	Description string   `yaml:"description,omitempty"`
	Variables   []string `yaml:"variables,omitempty"`
	System      string   `yaml:"system,omitempty"`
	User        string   `yaml:"user,omitempty"`
}

// Registry resolves prompt assets by key. Defaults come from an
// embedded filesystem; files in the overlay dir replace same-key
// defaults. Safe for concurrent use.
type Registry struct {
	dir      string
	defaults fs.FS
	logger   *zap.Logger

	mu     sync.RWMutex
	assets map[string]*Asset
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaults supplies the embedded default assets loaded before the
// overlay dir.
func WithDefaults(fsys fs.FS) RegistryOption {
	return func(r *Registry) { r.defaults = fsys }
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a registry over the overlay dir. An empty dir
// serves embedded defaults only.
func NewRegistry(dir string, opts ...RegistryOption) *Registry {
	r := &Registry{
		dir:    dir,
		logger: zap.NewNop(),
		assets: make(map[string]*Asset),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads defaults then the overlay dir, replacing the asset map
// atomically. Unparseable files are skipped with a warning so one bad
// asset cannot take every prompt down.
func (r *Registry) Load() error {
	assets := make(map[string]*Asset)

	if r.defaults != nil {
		if err := loadFS(r.defaults, assets, r.logger); err != nil {
			return fmt.Errorf("load default prompts: %w", err)
		}
	}
	if r.dir != "" {
		if _, err := os.Stat(r.dir); err == nil {
			if err := loadFS(os.DirFS(r.dir), assets, r.logger); err != nil {
				return fmt.Errorf("load prompt dir %s: %w", r.dir, err)
			}
		}
	}

	r.mu.Lock()
	r.assets = assets
	r.mu.Unlock()
	r.logger.Debug("prompt registry loaded", zap.Int("assets", len(assets)))
	return nil
}

func loadFS(fsys fs.FS, into map[string]*Asset, logger *zap.Logger) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		asset, err := parseAsset(path, data)
		if err != nil {
			logger.Warn("skipping malformed prompt asset",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		into[asset.Key] = asset
		return nil
	})
}

func parseAsset(path string, data []byte) (*Asset, error) {
	var asset Asset
	if err := yaml.Unmarshal(data, &asset); err != nil {
		return nil, err
	}
	if asset.Key == "" {
		asset.Key = keyFromPath(path)
	}
	if asset.System == "" && asset.User == "" {
		return nil, fmt.Errorf("asset %q has neither system nor user content", asset.Key)
	}
	return &asset, nil
}

// keyFromPath derives the asset key from the file path relative to the
// registry root: "agent/reasoning.yaml" -> "agent.reasoning".
func keyFromPath(path string) string {
	key := strings.TrimSuffix(path, filepath.Ext(path))
	return strings.ReplaceAll(key, "/", ".")
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// Render resolves the asset and interpolates both halves. Referenced
// variables missing from vars become empty strings and are warned
// about, never left as raw placeholders.
func (r *Registry) Render(name string, vars map[string]any) (system, user string, err error) {
	r.mu.RLock()
	asset, ok := r.assets[name]
	r.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("prompt not found: %s", name)
	}

	var missing []string
	system, m1 := Interpolate(asset.System, vars)
	user, m2 := Interpolate(asset.User, vars)
	missing = append(missing, m1...)
	missing = append(missing, m2...)
	if len(missing) > 0 {
		r.logger.Warn("prompt rendered with missing variables",
			zap.String("key", name),
			zap.Strings("missing", missing))
	}
	return system, user, nil
}

// Get renders the asset and returns its non-empty halves joined with a
// blank line. Static single-block assets come back as plain text.
func (r *Registry) Get(ctx context.Context, key string, vars map[string]any) (string, error) {
	system, user, err := r.Render(key, vars)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, 2)
	if strings.TrimSpace(system) != "" {
		parts = append(parts, strings.TrimSpace(system))
	}
	if strings.TrimSpace(user) != "" {
		parts = append(parts, strings.TrimSpace(user))
	}
	return strings.Join(parts, "\n\n"), nil
}

// Describe returns the asset metadata for key.
func (r *Registry) Describe(key string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[key]
	if !ok {
		return nil, false
	}
	copied := *asset
	return &copied, true
}

// Keys lists loaded asset keys, unordered.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.assets))
	for k := range r.assets {
		keys = append(keys, k)
	}
	return keys
}

// Watch reloads the registry whenever a YAML file under the overlay
// dir changes, until ctx ends. No-op without an overlay dir.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch prompt dir %s: %w", r.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isYAML(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := r.Load(); err != nil {
					r.logger.Warn("prompt reload failed", zap.Error(err))
					continue
				}
				r.logger.Info("prompts reloaded",
					zap.String("file", filepath.Base(event.Name)))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("prompt watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
