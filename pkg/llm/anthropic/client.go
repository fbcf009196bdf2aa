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
// Package anthropic implements the ephemeral-cache provider: the
// system prompt carries a cache_control breakpoint, so both prefix and
// session calls reuse the provider-side prefix. Session calls with a
// call type get the extended one-hour TTL.
package anthropic

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
	DefaultModel = "claude-sonnet-4-5-20250929"

	// DefaultEndpoint is the Anthropic Messages API endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the response token cap.
	DefaultMaxTokens = 4096

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 1.0
)

var (
	globalRateLimiter     *llm.RateLimiter
	globalRateLimiterOnce sync.Once
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey            string
	Model             string
	Endpoint          string
	Timeout           time.Duration
	MaxTokens         int
	Temperature       float64
	SessionCacheTTL   string // "1h" extended TTL for session calls; empty keeps the 5m default
	RateLimiterConfig llm.RateLimiterConfig
}

// Client talks to the Anthropic Messages API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	maxTokens   int
	temperature float64
	sessionTTL  string
	rateLimiter *llm.RateLimiter
	httpClient  *http.Client
}

// NewClient creates an Anthropic client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
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
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		sessionTTL:  config.SessionCacheTTL,
		rateLimiter: rateLimiter,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "anthropic" }

// Model returns the model identifier.
func (c *Client) Model() string { return c.model }

// Generate sends one request, replaying session history when present.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	apiReq := c.buildRequest(req)

	resp, err := c.callAPI(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	out := &llm.Response{
		InputTokens: resp.Usage.InputTokens +
			resp.Usage.CacheCreationInputTokens +
			resp.Usage.CacheReadInputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CachedTokens: resp.Usage.CacheReadInputTokens,
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.Content += block.Text
		}
	}
	return out, nil
}

// buildRequest maps the gateway request onto the Messages API: system
// prompt as a cacheable block, history resent as messages.
func (c *Client) buildRequest(req *llm.Request) *MessagesRequest {
	apiReq := &MessagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	if req.System != "" {
		block := TextBlockParam{Type: "text", Text: req.System}
		if req.CacheEnabled {
			cc := &CacheControl{Type: "ephemeral"}
			if req.Session != nil && req.Session.CallType != "" && c.sessionTTL != "" {
				cc.TTL = c.sessionTTL
			}
			block.CacheControl = cc
		}
		apiReq.System = []TextBlockParam{block}
	}

	if req.Session != nil {
		for _, turn := range req.Session.History {
			apiReq.Messages = append(apiReq.Messages, Message{
				Role:    turn.Role,
				Content: []ContentBlock{{Type: "text", Text: turn.Content}},
			})
		}
	}
	apiReq.Messages = append(apiReq.Messages, Message{
		Role:    "user",
		Content: []ContentBlock{{Type: "text", Text: req.User}},
	})
	return apiReq
}

// callAPI performs the HTTP exchange under the rate limiter.
func (c *Client) callAPI(ctx context.Context, apiReq *MessagesRequest) (*MessagesResponse, error) {
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
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")
		httpReq.Header.Set("anthropic-beta", "extended-cache-ttl-2025-04-11")

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
			return nil, &llm.APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		var out MessagesResponse
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
		return result.(*MessagesResponse), nil
	}
	result, err := doOnce(ctx)
	if err != nil {
		return nil, err
	}
	return result.(*MessagesResponse), nil
}

var _ llm.Provider = (*Client)(nil)
