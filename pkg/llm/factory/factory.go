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
// Package factory constructs the configured LLM provider.
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm/anthropic"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm/gemini"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm/openai"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm/responses"
)

// DefaultBytePlusEndpoint is the BytePlus ModelArk chat endpoint.
const DefaultBytePlusEndpoint = "https://ark.ap-southeast.bytepluses.com/api/v3/chat/completions"

// Config selects and configures a provider.
type Config struct {
	// Provider is one of "openai", "responses", "gemini", "anthropic",
	// "byteplus".
	Provider string

	// Model overrides the provider default.
	Model string

	OpenAIAPIKey    string
	GoogleAPIKey    string
	AnthropicAPIKey string
	BytePlusAPIKey  string

	OpenAIBaseURL   string
	GeminiBaseURL   string
	BytePlusBaseURL string

	// SessionCacheTTL is the provider-side lifetime for explicit
	// session caches (Gemini cache objects, Anthropic extended TTL).
	SessionCacheTTL time.Duration

	RateLimiter llm.RateLimiterConfig
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg Config) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return openai.NewClient(openai.Config{
			APIKey:            cfg.OpenAIAPIKey,
			Model:             cfg.Model,
			Endpoint:          cfg.OpenAIBaseURL,
			RateLimiterConfig: cfg.RateLimiter,
		}), nil

	case "responses":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("responses provider requires OPENAI_API_KEY")
		}
		return responses.NewClient(responses.Config{
			APIKey:            cfg.OpenAIAPIKey,
			Model:             cfg.Model,
			Endpoint:          cfg.OpenAIBaseURL,
			RateLimiterConfig: cfg.RateLimiter,
		}), nil

	case "gemini", "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires GOOGLE_API_KEY")
		}
		return gemini.NewClient(gemini.Config{
			APIKey:            cfg.GoogleAPIKey,
			Model:             cfg.Model,
			BaseURL:           cfg.GeminiBaseURL,
			CacheTTL:          cfg.SessionCacheTTL,
			RateLimiterConfig: cfg.RateLimiter,
		}), nil

	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY")
		}
		ttl := ""
		if cfg.SessionCacheTTL >= time.Hour {
			ttl = "1h"
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:            cfg.AnthropicAPIKey,
			Model:             cfg.Model,
			SessionCacheTTL:   ttl,
			RateLimiterConfig: cfg.RateLimiter,
		}), nil

	case "byteplus":
		if cfg.BytePlusAPIKey == "" {
			return nil, fmt.Errorf("byteplus provider requires BYTEPLUS_API_KEY")
		}
		endpoint := cfg.BytePlusBaseURL
		if endpoint == "" {
			endpoint = DefaultBytePlusEndpoint
		}
		return openai.NewClient(openai.Config{
			APIKey:            cfg.BytePlusAPIKey,
			Model:             cfg.Model,
			Endpoint:          endpoint,
			ProviderName:      "byteplus",
			RateLimiterConfig: cfg.RateLimiter,
		}), nil

	case "":
		return nil, fmt.Errorf("no LLM provider configured (set LLM_PROVIDER)")
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
