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
	"strings"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/jsonx"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// PromptReconcileSessions is the asset the reconciler renders.
const PromptReconcileSessions = "reconcile_sessions"

// SessionReconciler asks the model which session an incoming trigger
// belongs to. It implements triggers.Reconciler; the queue validates
// the answer against the live heap and falls back to the caller's id,
// so a wrong answer costs nothing but a merge.
type SessionReconciler struct {
	gen      StatelessGenerator
	renderer PromptRenderer
	logger   *zap.Logger
}

// NewSessionReconciler wires the reconciler.
func NewSessionReconciler(gen StatelessGenerator, renderer PromptRenderer, logger *zap.Logger) *SessionReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionReconciler{gen: gen, renderer: renderer, logger: logger}
}

// Reconcile returns the session id the incoming trigger should adopt.
func (r *SessionReconciler) Reconcile(ctx context.Context, incoming types.Trigger, pending []types.Trigger) (string, error) {
	if len(pending) == 0 {
		return incoming.SessionID, nil
	}
	system, user, err := r.renderer.Render(PromptReconcileSessions, map[string]any{
		"incoming": describeTrigger(incoming),
		"pending":  describeTriggers(pending),
	})
	if err != nil {
		return "", fmt.Errorf("render reconcile prompt: %w", err)
	}
	res, err := r.gen.Generate(ctx, system, user)
	if err != nil {
		return "", err
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := jsonx.Decode(res.Content, &out); err != nil {
		return "", fmt.Errorf("reconcile reply: %w", err)
	}
	chosen := strings.TrimSpace(out.SessionID)
	if chosen == "" {
		return "", fmt.Errorf("reconcile reply has no session_id")
	}
	if chosen != incoming.SessionID {
		r.logger.Debug("trigger rehomed",
			zap.String("from", incoming.SessionID),
			zap.String("to", chosen))
	}
	return chosen, nil
}

func describeTrigger(t types.Trigger) string {
	return fmt.Sprintf("session_id: %s\npriority: %d\ndescription: %s",
		t.SessionID, t.Priority, t.NextActionDescription)
}

func describeTriggers(list []types.Trigger) string {
	parts := make([]string, len(list))
	for i, t := range list {
		parts[i] = fmt.Sprintf("- session_id: %s | description: %s",
			t.SessionID, firstLine(t.NextActionDescription))
	}
	return strings.Join(parts, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
