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
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName for keyring storage
	ServiceName = "wca"
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "wca"
)

// Config holds all configuration for the agent kernel.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	// DataDir is the agent data directory. Not loaded from the config
	// file; use the WCA_DATA_DIR environment variable to override.
	DataDir string `mapstructure:"-"`

	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Budgets  BudgetsConfig  `mapstructure:"budgets"`
	Events   EventsConfig   `mapstructure:"events"`
	Search   SearchConfig   `mapstructure:"search"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LLMConfig holds provider configuration.
type LLMConfig struct {
	// Provider is one of "openai", "responses", "gemini", "anthropic",
	// "byteplus".
	Provider string `mapstructure:"provider"`
	// Model overrides the provider default.
	Model string `mapstructure:"model"`

	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	GoogleAPIKey    string `mapstructure:"google_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	BytePlusAPIKey  string `mapstructure:"byteplus_api_key"`

	OpenAIBaseURL   string `mapstructure:"openai_base_url"`
	GeminiBaseURL   string `mapstructure:"gemini_base_url"`
	BytePlusBaseURL string `mapstructure:"byteplus_base_url"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles provider calls.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstCapacity     int     `mapstructure:"burst_capacity"`
}

// CacheConfig tunes prompt caching. Prefix anchors live as long as the
// provider allows; only session caches take an explicit TTL.
type CacheConfig struct {
	// SessionTTL is the provider-side lifetime of a task's session
	// cache (Gemini cache objects, Anthropic extended TTL).
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// MinTokens is the smallest system prompt worth caching.
	MinTokens int `mapstructure:"min_tokens"`
}

// BudgetsConfig caps task spend.
type BudgetsConfig struct {
	MaxActionsPerTask int `mapstructure:"max_actions_per_task"`
	MaxTokensPerTask  int `mapstructure:"max_token_per_task"`
}

// EventsConfig tunes the bounded event streams.
type EventsConfig struct {
	SummarizeAt   int `mapstructure:"summarize_at"`
	TailKeep      int `mapstructure:"tail_keep"`
	ExternalizeAt int `mapstructure:"externalize_at"`
}

// SearchConfig locates the vector index.
type SearchConfig struct {
	// ChromaPath is the chromem persistence directory. Empty keeps the
	// index in memory.
	ChromaPath string `mapstructure:"chroma_path"`
}

// PlannerConfig tunes plan generation.
type PlannerConfig struct {
	// FewShotK is how many similar past tasks the planner prompt cites.
	FewShotK int `mapstructure:"few_shot_k"`
}

// ExecutorConfig tunes action execution.
type ExecutorConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// FeedConfig configures the progress surface.
type FeedConfig struct {
	// Addr is the bind address, e.g. "127.0.0.1:5800". Empty disables
	// the feed.
	Addr string `mapstructure:"addr"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DataDir returns the agent data directory, honoring WCA_DATA_DIR and
// the bare DATA_DIR fallback.
func DataDir() string {
	if dir := os.Getenv("WCA_DATA_DIR"); dir != "" {
		return dir
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wca"
	}
	return filepath.Join(home, ".wca")
}

// LoadConfig loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Config file
// 3. Environment variables
// 4. Defaults (lowest priority)
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(DataDir())
		viper.AddConfigPath(".")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	viper.SetEnvPrefix("WCA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Conventional provider variables also bind without the prefix.
	_ = viper.BindEnv("llm.provider", "WCA_LLM_PROVIDER", "LLM_PROVIDER")
	_ = viper.BindEnv("llm.openai_api_key", "WCA_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("llm.google_api_key", "WCA_LLM_GOOGLE_API_KEY", "GOOGLE_API_KEY")
	_ = viper.BindEnv("llm.anthropic_api_key", "WCA_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("llm.byteplus_api_key", "WCA_LLM_BYTEPLUS_API_KEY", "BYTEPLUS_API_KEY")
	_ = viper.BindEnv("search.chroma_path", "WCA_SEARCH_CHROMA_PATH", "CHROMA_PATH")
	_ = viper.BindEnv("cache.session_ttl", "WCA_CACHE_SESSION_TTL", "CACHE_SESSION_TTL")
	_ = viper.BindEnv("cache.min_tokens", "WCA_CACHE_MIN_TOKENS", "CACHE_MIN_TOKENS")
	_ = viper.BindEnv("budgets.max_actions_per_task", "WCA_BUDGETS_MAX_ACTIONS_PER_TASK", "MAX_ACTIONS_PER_TASK")
	_ = viper.BindEnv("budgets.max_token_per_task", "WCA_BUDGETS_MAX_TOKEN_PER_TASK", "MAX_TOKEN_PER_TASK")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.DataDir = DataDir()

	// Non-fatal: keyring might not be available - user can provide
	// secrets via config/env.
	_ = loadSecretsFromKeyring(&config)

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.rate_limit.enabled", true)
	viper.SetDefault("llm.rate_limit.requests_per_second", 2.0)
	viper.SetDefault("llm.rate_limit.burst_capacity", 5)

	viper.SetDefault("cache.session_ttl", "1h")
	viper.SetDefault("cache.min_tokens", 125)

	viper.SetDefault("budgets.max_actions_per_task", 60)
	viper.SetDefault("budgets.max_token_per_task", 2000000)

	viper.SetDefault("events.summarize_at", 30)
	viper.SetDefault("events.tail_keep", 15)
	viper.SetDefault("events.externalize_at", 8000)

	viper.SetDefault("search.chroma_path", filepath.Join(DataDir(), "chroma"))

	viper.SetDefault("planner.few_shot_k", 1)

	viper.SetDefault("executor.timeout_seconds", 300)

	viper.SetDefault("feed.addr", "127.0.0.1:5800")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// secretMapping binds one keyring entry to its config field.
type secretMapping struct {
	KeyringKey string
	IsSet      func(*Config) bool
	Setter     func(*Config, string)
}

// GetSecretMappings returns the API keys the keyring can supply.
func GetSecretMappings() []secretMapping {
	return []secretMapping{
		{
			KeyringKey: "anthropic_api_key",
			IsSet:      func(c *Config) bool { return c.LLM.AnthropicAPIKey != "" },
			Setter:     func(c *Config, v string) { c.LLM.AnthropicAPIKey = v },
		},
		{
			KeyringKey: "openai_api_key",
			IsSet:      func(c *Config) bool { return c.LLM.OpenAIAPIKey != "" },
			Setter:     func(c *Config, v string) { c.LLM.OpenAIAPIKey = v },
		},
		{
			KeyringKey: "google_api_key",
			IsSet:      func(c *Config) bool { return c.LLM.GoogleAPIKey != "" },
			Setter:     func(c *Config, v string) { c.LLM.GoogleAPIKey = v },
		},
		{
			KeyringKey: "byteplus_api_key",
			IsSet:      func(c *Config) bool { return c.LLM.BytePlusAPIKey != "" },
			Setter:     func(c *Config, v string) { c.LLM.BytePlusAPIKey = v },
		},
	}
}

// loadSecretsFromKeyring fills API keys missing from config/env.
func loadSecretsFromKeyring(config *Config) error {
	for _, mapping := range GetSecretMappings() {
		if mapping.IsSet(config) {
			continue
		}
		value, err := keyring.Get(ServiceName, mapping.KeyringKey)
		if err == nil && value != "" {
			mapping.Setter(config, value)
		}
		// Non-fatal: if keyring doesn't have the key, just continue
	}
	return nil
}
