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
// Package gemini implements the implicit-cache provider. One-shot
// calls lean on the provider's automatic prefix caching; session calls
// create an explicit cachedContents object per (call type, system
// prompt hash) and reference it by handle, falling back to implicit
// caching when creation is refused (prompts below the provider's cache
// minimum).
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.0-flash"

	// DefaultBaseURL is the Generative Language API base.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 120 * time.Second

	// DefaultCacheTTL is the cachedContents lifetime.
	DefaultCacheTTL = time.Hour
)

var (
	globalRateLimiter     *llm.RateLimiter
	globalRateLimiterOnce sync.Once
)

// Config holds configuration for the Gemini client.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	MaxOutputTokens   int
	Temperature       float64
	CacheTTL          time.Duration
	RateLimiterConfig llm.RateLimiterConfig
}

// Client talks to the Generative Language API.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	cacheTTL    time.Duration
	rateLimiter *llm.RateLimiter
	httpClient  *http.Client
}

// NewClient creates a Gemini client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		if envModel := os.Getenv("GEMINI_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
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
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		maxTokens:   config.MaxOutputTokens,
		temperature: config.Temperature,
		cacheTTL:    config.CacheTTL,
		rateLimiter: rateLimiter,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "gemini" }

// Model returns the model identifier.
func (c *Client) Model() string { return c.model }

// Generate sends one request. Session calls without a handle first try
// to create a cache object for the system prompt.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	handle := ""
	if req.Session != nil {
		handle = req.Session.Handle
		if handle == "" && req.CacheEnabled && req.System != "" {
			if name, err := c.createCachedContent(ctx, req.Session.CallType, req.System); err == nil {
				handle = name
			}
			// Creation refusals (prompt below the cache minimum, quota)
			// degrade to implicit caching.
		}
	}

	apiReq := &GenerateRequest{CachedContent: handle}
	if handle == "" && req.System != "" {
		apiReq.SystemInstruction = &Content{Parts: []Part{{Text: req.System}}}
	}
	if req.Session != nil {
		for _, turn := range req.Session.History {
			role := "user"
			if turn.Role == "assistant" {
				role = "model"
			}
			apiReq.Contents = append(apiReq.Contents, Content{Role: role, Parts: []Part{{Text: turn.Content}}})
		}
	}
	apiReq.Contents = append(apiReq.Contents, Content{Role: "user", Parts: []Part{{Text: req.User}}})
	if c.temperature > 0 || c.maxTokens > 0 {
		apiReq.GenerationConfig = &GenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		}
	}

	resp, err := c.callGenerate(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty candidates in response")
	}

	out := &llm.Response{Handle: handle}
	for _, part := range resp.Candidates[0].Content.Parts {
		out.Content += part.Text
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
		out.CachedTokens = resp.UsageMetadata.CachedContentTokenCount
	}
	return out, nil
}

// CloseHandle deletes a cachedContents object. Best effort.
func (c *Client) CloseHandle(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	url := fmt.Sprintf("%s/%s", c.baseURL, handle)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &llm.APIError{Provider: "gemini", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// createCachedContent registers the system prompt as a cache object
// named per (call type, prompt hash).
func (c *Client) createCachedContent(ctx context.Context, callType llm.CallType, system string) (string, error) {
	apiReq := &CachedContentRequest{
		Model:             "models/" + c.model,
		SystemInstruction: &Content{Parts: []Part{{Text: system}}},
		TTL:               fmt.Sprintf("%ds", int(c.cacheTTL.Seconds())),
		DisplayName:       fmt.Sprintf("%s_%x", callType, llm.HashPrompt(system)),
	}
	body, err := json.Marshal(apiReq)
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/cachedContents"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &llm.APIError{Provider: "gemini", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out CachedContentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

// callGenerate performs the generateContent exchange under the rate
// limiter.
func (c *Client) callGenerate(ctx context.Context, apiReq *GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	doOnce := func(ctx context.Context) (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

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
			return nil, &llm.APIError{Provider: "gemini", StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		var out GenerateResponse
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
		return result.(*GenerateResponse), nil
	}
	result, err := doOnce(ctx)
	if err != nil {
		return nil, err
	}
	return result.(*GenerateResponse), nil
}

var (
	_ llm.Provider     = (*Client)(nil)
	_ llm.HandleCloser = (*Client)(nil)
)
