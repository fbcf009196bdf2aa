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
// Package openai implements the automatic-cache provider over the Chat
// Completions API: the provider caches long shared prefixes on its
// own, and session calls pin a prompt_cache_key so every call type
// lands on its own cache partition. A BytePlus deployment is the same
// wire format behind a different base URL, so the client carries a
// configurable provider name.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultEndpoint is the OpenAI Chat Completions endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 120 * time.Second

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7
)

var (
	globalRateLimiter     *llm.RateLimiter
	globalRateLimiterOnce sync.Once
)

// Config holds configuration for the client.
type Config struct {
	APIKey            string
	Model             string
	Endpoint          string
	ProviderName      string // "openai" by default; "byteplus" for BytePlus deployments
	Timeout           time.Duration
	MaxTokens         int
	Temperature       float64
	RateLimiterConfig llm.RateLimiterConfig
}

// Client talks to an OpenAI-compatible Chat Completions API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	name        string
	maxTokens   int
	temperature float64
	rateLimiter *llm.RateLimiter
	httpClient  *http.Client
}

// NewClient creates a client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		if envModel := os.Getenv("OPENAI_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.ProviderName == "" {
		config.ProviderName = "openai"
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}

	var rateLimiter *llm.RateLimiter
	if config.RateLimiterConfig.Enabled {
		globalRateLimiterOnce.Do(func() {
			globalRateLimiter = llm.NewRateLimiter(config.RateLimiterConfig)
		})
		rateLimiter = globalRateLimiter
	}

	return &Client{
		apiKey:      config.APIKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		name:        config.ProviderName,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		rateLimiter: rateLimiter,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// Model returns the model identifier.
func (c *Client) Model() string { return c.model }

// Generate sends one request, replaying session history as messages.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	apiReq := &ChatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, ChatMessage{Role: "system", Content: req.System})
	}
	if req.Session != nil {
		for _, turn := range req.Session.History {
			apiReq.Messages = append(apiReq.Messages, ChatMessage{Role: turn.Role, Content: turn.Content})
		}
		if req.CacheEnabled {
			apiReq.PromptCacheKey = SessionCacheKey(req.Session.CallType, req.System)
		}
	}
	apiReq.Messages = append(apiReq.Messages, ChatMessage{Role: "user", Content: req.User})

	resp, err := c.callAPI(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response")
	}

	out := &llm.Response{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if resp.Usage.PromptTokensDetails != nil {
		out.CachedTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}
	return out, nil
}

// SessionCacheKey builds the cache partition key for a session call.
func SessionCacheKey(callType llm.CallType, system string) string {
	return fmt.Sprintf("%s_%x", callType, llm.HashPrompt(system))
}

// callAPI performs the HTTP exchange under the rate limiter.
func (c *Client) callAPI(ctx context.Context, apiReq *ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	doOnce := func(ctx context.Context) (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &llm.APIError{Provider: c.name, StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		var out ChatResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return &out, nil
	}

	if c.rateLimiter != nil {
		result, err := c.rateLimiter.Do(ctx, doOnce)
		if err != nil {
			return nil, err
		}
		return result.(*ChatResponse), nil
	}
	result, err := doOnce(ctx)
	if err != nil {
		return nil, err
	}
	return result.(*ChatResponse), nil
}

var _ llm.Provider = (*Client)(nil)
