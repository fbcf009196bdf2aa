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

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

// PromptSummarizeEvents is the asset the summarizer renders.
const PromptSummarizeEvents = "summarize_events"

// StatelessGenerator is the plain generation surface. *llm.Gateway
// satisfies it.
type StatelessGenerator interface {
	Generate(ctx context.Context, system, user string) (llm.Result, error)
}

// PromptRenderer resolves a named asset into system and user halves.
// *prompts.Registry satisfies it.
type PromptRenderer interface {
	Render(name string, vars map[string]any) (system, user string, err error)
}

// EventSummarizer folds event chunks into a running head summary
// through the gateway. It implements events.Summarizer.
type EventSummarizer struct {
	gen      StatelessGenerator
	renderer PromptRenderer
	logger   *zap.Logger
}

// NewEventSummarizer wires the summarizer.
func NewEventSummarizer(gen StatelessGenerator, renderer PromptRenderer, logger *zap.Logger) *EventSummarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventSummarizer{gen: gen, renderer: renderer, logger: logger}
}

// Summarize returns the new head summary for previous + chunk. An empty
// reply is an error so the stream keeps its tail instead of losing
// history.
func (s *EventSummarizer) Summarize(ctx context.Context, previous, chunk string) (string, error) {
	system, user, err := s.renderer.Render(PromptSummarizeEvents, map[string]any{
		"previous": previous,
		"events":   chunk,
	})
	if err != nil {
		return "", fmt.Errorf("render summarize prompt: %w", err)
	}
	res, err := s.gen.Generate(ctx, system, user)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(res.Content)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty content")
	}
	return summary, nil
}
