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
// Package responses implements the chained-handle provider over the
// Responses API. Session calls store every response and chain the next
// request onto it, so provider-side context grows monotonically.
// Prefix calls store only the first response per system prompt and
// chain later one-shots onto that handle without storing, reusing the
// cached prefix without growing it.
package responses

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

	// DefaultEndpoint is the Responses API endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/responses"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 120 * time.Second
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
	Timeout           time.Duration
	MaxOutputTokens   int
	Temperature       float64
	RateLimiterConfig llm.RateLimiterConfig
}

// Client talks to the Responses API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
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
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
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
		maxTokens:   config.MaxOutputTokens,
		temperature: config.Temperature,
		rateLimiter: rateLimiter,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "responses" }

// Model returns the model identifier.
func (c *Client) Model() string { return c.model }

// Generate sends one request. Session state rides on the provider via
// previous_response_id, so history is never resent.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	apiReq := &Request{
		Model:           c.model,
		Instructions:    req.System,
		Input:           req.User,
		MaxOutputTokens: c.maxTokens,
		Temperature:     c.temperature,
	}

	switch {
	case req.Session != nil:
		// Growing chain: always store, chain when a handle exists.
		apiReq.Store = boolPtr(true)
		apiReq.PreviousResponseID = req.Session.Handle
	case req.Prefix != nil:
		apiReq.Store = boolPtr(req.CacheEnabled)
		apiReq.PreviousResponseID = req.Prefix.Handle
	default:
		apiReq.Store = boolPtr(false)
	}

	resp, err := c.callAPI(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	out := &llm.Response{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Handle:       resp.ID,
	}
	if resp.Usage.InputTokensDetails != nil {
		out.CachedTokens = resp.Usage.InputTokensDetails.CachedTokens
	}
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				out.Content += part.Text
			}
		}
	}
	return out, nil
}

// callAPI performs the HTTP exchange under the rate limiter.
func (c *Client) callAPI(ctx context.Context, apiReq *Request) (*Response, error) {
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
			return nil, &llm.APIError{Provider: "responses", StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		var out Response
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
		return result.(*Response), nil
	}
	result, err := doOnce(ctx)
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func boolPtr(b bool) *bool { return &b }

var _ llm.Provider = (*Client)(nil)
