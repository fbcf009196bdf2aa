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
// Package llm provides the provider-agnostic gateway the runtime talks
// to: one-shot generation with prefix caching, session generation with
// provider-shaped context caching, overflow recovery, token accounting
// and rate limiting. Provider clients live in subpackages and share the
// Request/Response contract defined here.
package llm

import (
	"context"
	"fmt"
)

// CallType labels a session cache slot. A task holds at most one
// session per call type, so reasoning and action selection never share
// growing context.
type CallType string

const (
	CallReasoning          CallType = "reasoning"
	CallActionSelection    CallType = "action_selection"
	CallGUIReasoning       CallType = "gui_reasoning"
	CallGUIActionSelection CallType = "gui_action_selection"
)

// Turn is one prior exchange kept for providers without server-side
// conversation state.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// SessionState is the gateway-owned state of one session cache slot:
// the system prompt it was registered with, the provider handle when
// the provider keeps server-side state, and the transcript for
// providers that need it resent.
type SessionState struct {
	SystemPrompt string
	CallType     CallType
	Handle       string
	History      []Turn
}

// PrefixState is the gateway-owned state of one prefix cache entry,
// keyed by the hash of a system prompt.
type PrefixState struct {
	Handle string
	Seen   bool
}

// Request is one generation request handed to a provider client.
// Exactly one of Session/Prefix may be set; both nil means a plain
// uncached call.
type Request struct {
	System       string
	User         string
	CacheEnabled bool
	Session      *SessionState
	Prefix       *PrefixState
}

// Response is what a provider returns. Handle carries provider cache
// state forward (response id, cached-content name); providers without
// handles leave it empty. CachedTokens counts prompt tokens served
// from the provider cache.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	CachedTokens int
	Handle       string
}

// Provider is one LLM backend. Implementations are safe for concurrent
// use and map the shared Request onto their wire format, including
// their cache dialect.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// APIError is a non-2xx provider reply. Callers branch on StatusCode
// for throttling and on the body for overflow detection.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}
