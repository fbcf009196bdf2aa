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
package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/csync"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/observability"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Result is what callers of the gateway receive.
type Result struct {
	Content      string
	TokensUsed   int
	CachedTokens int
}

// SessionKey identifies one session cache slot.
type SessionKey struct {
	TaskID   string
	CallType CallType
}

// PromptRecord is the persistence shape of one gateway call.
type PromptRecord struct {
	TaskID       string
	CallType     string
	Provider     string
	Model        string
	System       string
	User         string
	Response     string
	InputTokens  int
	OutputTokens int
	CachedTokens int
	CreatedAt    time.Time
}

// PromptSink receives a record for every generation. The JSONL store
// implements it; tests use an in-memory slice.
type PromptSink interface {
	RecordPrompt(rec PromptRecord)
}

// HandleCloser is implemented by providers whose cache handles are
// server-side objects worth an explicit delete. Best effort; abandoned
// handles TTL out.
type HandleCloser interface {
	CloseHandle(ctx context.Context, handle string) error
}

const (
	defaultMinCacheChars = 500
	defaultPrefixEntries = 128
)

// Gateway is the single façade the runtime uses for LLM work. It owns
// the session cache registry keyed (task, call type), the prefix cache
// registry keyed by system prompt hash, token accounting, and overflow
// recovery.
type Gateway struct {
	provider Provider
	logger   *zap.Logger
	tracer   observability.Tracer
	props    *types.AgentProperties
	sink     PromptSink
	counter  *TokenCounter

	minCacheChars int

	sessions *csync.Map[SessionKey, *SessionState]

	prefixMu sync.Mutex
	prefixes *lru.Cache[uint64, *PrefixState]
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithTracer sets the tracer used for spans and cache metrics.
func WithTracer(t observability.Tracer) GatewayOption {
	return func(g *Gateway) { g.tracer = t }
}

// WithProperties wires the budget counters every call reports into.
func WithProperties(p *types.AgentProperties) GatewayOption {
	return func(g *Gateway) { g.props = p }
}

// WithPromptSink wires the persistence hook.
func WithPromptSink(s PromptSink) GatewayOption {
	return func(g *Gateway) { g.sink = s }
}

// WithMinCacheChars overrides the minimum system prompt length for
// caching.
func WithMinCacheChars(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.minCacheChars = n
		}
	}
}

// NewGateway builds a gateway over one provider.
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	prefixes, _ := lru.New[uint64, *PrefixState](defaultPrefixEntries)
	g := &Gateway{
		provider:      provider,
		logger:        zap.NewNop(),
		tracer:        observability.NewNoOpTracer(),
		counter:       GetTokenCounter(),
		minCacheChars: defaultMinCacheChars,
		sessions:      csync.NewMap[SessionKey, *SessionState](),
		prefixes:      prefixes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider returns the wrapped provider.
func (g *Gateway) Provider() Provider { return g.provider }

// Generate performs a one-shot generation. System prompts long enough
// for caching go through the prefix cache registry so repeated calls
// with the same system prompt reuse the provider-side prefix.
func (g *Gateway) Generate(ctx context.Context, system, user string) (Result, error) {
	ctx, span := g.tracer.StartSpan(ctx, "llm.generate",
		observability.WithAttribute("llm.provider", g.provider.Name()))
	defer g.tracer.EndSpan(span)

	req := &Request{System: system, User: user}
	cacheType := "none"
	var prefix *PrefixState
	var hash uint64

	if len(system) >= g.minCacheChars {
		cacheType = "prefix"
		hash = hashPrompt(system)
		prefix = g.prefixEntry(hash)
		req.Prefix = prefix
		// First sighting of a prefix runs with caching enabled so the
		// provider stores it; later calls reuse without growing.
		req.CacheEnabled = !prefix.Seen
	}

	res, err := g.provider.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		g.logger.Error("generation failed",
			zap.String("provider", g.provider.Name()),
			zap.Error(err))
		return Result{}, err
	}

	if prefix != nil {
		g.prefixMu.Lock()
		prefix.Seen = true
		if res.Handle != "" {
			prefix.Handle = res.Handle
		}
		g.prefixMu.Unlock()
	}

	return g.finish(res, "", "", system, user, cacheType), nil
}

// CreateSessionCache registers the system prompt under (taskID,
// callType) without issuing a request. The provider-side cache is
// created lazily on the first GenerateWithSession call.
func (g *Gateway) CreateSessionCache(taskID string, callType CallType, systemPrompt string) {
	key := SessionKey{TaskID: taskID, CallType: callType}
	g.sessions.Set(key, &SessionState{
		SystemPrompt: systemPrompt,
		CallType:     callType,
	})
	g.logger.Debug("session cache registered",
		zap.String("task_id", taskID),
		zap.String("call_type", string(callType)))
}

// GenerateWithSession performs a generation inside the session cache
// slot (taskID, callType), creating it from systemForNew when absent.
// Provider context-overflow rejections reset the slot, retry once from
// the stored system prompt plus only this user prompt, and fall back
// to a stateless call if that also fails.
func (g *Gateway) GenerateWithSession(ctx context.Context, taskID string, callType CallType, user, systemForNew string) (Result, error) {
	ctx, span := g.tracer.StartSpan(ctx, "llm.generate_session",
		observability.WithAttribute("llm.provider", g.provider.Name()),
		observability.WithAttribute("llm.call_type", string(callType)))
	defer g.tracer.EndSpan(span)

	key := SessionKey{TaskID: taskID, CallType: callType}
	state, ok := g.sessions.Get(key)
	if !ok {
		if systemForNew == "" {
			err := fmt.Errorf("no session cache for task %q call type %q and no system prompt supplied", taskID, callType)
			span.RecordError(err)
			return Result{}, err
		}
		state = &SessionState{SystemPrompt: systemForNew, CallType: callType}
		g.sessions.Set(key, state)
	}

	res, err := g.sessionCall(ctx, state, user)
	if err != nil && IsContextOverflow(err) {
		g.logger.Warn("session context overflow, recreating session",
			zap.String("task_id", taskID),
			zap.String("call_type", string(callType)),
			zap.Error(err))
		g.closeHandle(ctx, state.Handle)
		state.Handle = ""
		state.History = nil

		res, err = g.sessionCall(ctx, state, user)
		if err != nil {
			g.logger.Warn("session recreation failed, falling back to stateless call",
				zap.String("task_id", taskID),
				zap.Error(err))
			return g.Generate(ctx, state.SystemPrompt, user)
		}
	}
	if err != nil {
		span.RecordError(err)
		g.logger.Error("session generation failed",
			zap.String("task_id", taskID),
			zap.String("call_type", string(callType)),
			zap.Error(err))
		return Result{}, err
	}

	state.Handle = res.Handle
	state.History = append(state.History,
		Turn{Role: "user", Content: user},
		Turn{Role: "assistant", Content: res.Content},
	)

	return g.finish(res, taskID, string(callType), state.SystemPrompt, user, "session"), nil
}

// sessionCall issues one provider call for a session slot.
func (g *Gateway) sessionCall(ctx context.Context, state *SessionState, user string) (*Response, error) {
	req := &Request{
		System:       state.SystemPrompt,
		User:         user,
		CacheEnabled: len(state.SystemPrompt) >= g.minCacheChars,
		Session:      state,
	}
	return g.provider.Generate(ctx, req)
}

// EndSessionCache discards the session slot (taskID, callType).
// Ending an absent slot is a no-op.
func (g *Gateway) EndSessionCache(ctx context.Context, taskID string, callType CallType) {
	key := SessionKey{TaskID: taskID, CallType: callType}
	if state, ok := g.sessions.Take(key); ok {
		g.closeHandle(ctx, state.Handle)
		g.logger.Debug("session cache ended",
			zap.String("task_id", taskID),
			zap.String("call_type", string(callType)))
	}
}

// EndAllSessionCaches discards every session slot belonging to taskID.
// Idempotent.
func (g *Gateway) EndAllSessionCaches(ctx context.Context, taskID string) {
	for _, key := range g.sessions.Keys() {
		if key.TaskID == taskID {
			g.EndSessionCache(ctx, taskID, key.CallType)
		}
	}
}

// SessionCount returns the number of live session slots. Used by the
// progress feed and tests.
func (g *Gateway) SessionCount() int { return g.sessions.Len() }

// SessionHandle returns the provider handle of a session slot, for
// inspection.
func (g *Gateway) SessionHandle(taskID string, callType CallType) (string, bool) {
	state, ok := g.sessions.Get(SessionKey{TaskID: taskID, CallType: callType})
	if !ok {
		return "", false
	}
	return state.Handle, true
}

// finish applies accounting common to every successful call and
// assembles the caller-facing result.
func (g *Gateway) finish(res *Response, taskID, callType, system, user, cacheType string) Result {
	total := res.InputTokens + res.OutputTokens
	if total == 0 {
		// Providers that omit usage still need budget pressure.
		total = g.counter.CountTokensMultiple(system, user, res.Content)
	}
	if g.props != nil {
		g.props.AddTokens(total)
	}

	labels := map[string]string{
		"provider":   g.provider.Name(),
		"cache_type": cacheType,
	}
	if res.CachedTokens > 0 {
		g.tracer.RecordMetric("llm.cache.hit", 1, labels)
	} else {
		g.tracer.RecordMetric("llm.cache.miss", 1, labels)
	}
	g.tracer.RecordMetric("llm.tokens", float64(total), map[string]string{"provider": g.provider.Name()})

	if g.sink != nil {
		g.sink.RecordPrompt(PromptRecord{
			TaskID:       taskID,
			CallType:     callType,
			Provider:     g.provider.Name(),
			Model:        g.provider.Model(),
			System:       system,
			User:         user,
			Response:     res.Content,
			InputTokens:  res.InputTokens,
			OutputTokens: res.OutputTokens,
			CachedTokens: res.CachedTokens,
			CreatedAt:    time.Now().UTC(),
		})
	}

	return Result{
		Content:      res.Content,
		TokensUsed:   total,
		CachedTokens: res.CachedTokens,
	}
}

// prefixEntry returns the live prefix state for hash, creating it when
// missing.
func (g *Gateway) prefixEntry(hash uint64) *PrefixState {
	g.prefixMu.Lock()
	defer g.prefixMu.Unlock()
	if entry, ok := g.prefixes.Get(hash); ok {
		return entry
	}
	entry := &PrefixState{}
	g.prefixes.Add(hash, entry)
	return entry
}

func (g *Gateway) closeHandle(ctx context.Context, handle string) {
	if handle == "" {
		return
	}
	closer, ok := g.provider.(HandleCloser)
	if !ok {
		return
	}
	if err := closer.CloseHandle(ctx, handle); err != nil {
		g.logger.Debug("handle close failed", zap.Error(err))
	}
}

// hashPrompt returns the FNV-1a hash used to key prefix cache entries
// and provider cache partitions.
func hashPrompt(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// HashPrompt exposes the prompt hash to provider clients that embed it
// in partition keys.
func HashPrompt(s string) uint64 { return hashPrompt(s) }
