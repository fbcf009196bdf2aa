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
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/log"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/actions"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/agent"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/events"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/feed"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm/factory"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/observability"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/planner"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/prompts"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/router"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/search"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/store"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/tasks"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/triggers"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
	promptassets "github.com/zfoong/WhiteCollarAgent-sub000/prompts"
)

const shutdownTimeout = 10 * time.Second

// charsPerToken turns the configured token minimum into the gateway's
// character threshold.
const charsPerToken = 4

// runKernel builds every component and drives the agent loop until a
// signal arrives.
func runKernel(cfg *Config) error {
	if err := log.Init(cfg.Logging.Level, cfg.Logging.Format != "json"); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger := log.Logger()
	defer func() { _ = log.Sync() }()

	dataDir := cfg.DataDir
	actionsDir := filepath.Join(dataDir, actions.ActionDirName)
	promptsDir := filepath.Join(dataDir, "prompts")
	documentsDir := filepath.Join(dataDir, store.TaskDocumentDir)
	for _, dir := range []string{dataDir, actionsDir, promptsDir, documentsDir, filepath.Join(dataDir, tasks.ScratchDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: append-only JSONL log of prompts, runs, and tasks.
	st, err := store.Open(dataDir, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	props := types.NewAgentProperties(cfg.Budgets.MaxActionsPerTask, cfg.Budgets.MaxTokensPerTask)
	metrics := observability.NewCollector(logger.Named("metrics"))

	// Vector search: one chromem DB, one collection per corpus.
	embedder := search.NewHashEmbedder(search.DefaultDimensions)
	actionIndex, err := search.NewChromem(cfg.Search.ChromaPath, "actions", embedder)
	if err != nil {
		return fmt.Errorf("open action index: %w", err)
	}
	taskIndex, err := search.NewChromem(cfg.Search.ChromaPath, "tasks", embedder)
	if err != nil {
		return fmt.Errorf("open task index: %w", err)
	}

	// LLM gateway over the configured provider.
	provider, err := factory.NewProvider(factory.Config{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		GoogleAPIKey:    cfg.LLM.GoogleAPIKey,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		BytePlusAPIKey:  cfg.LLM.BytePlusAPIKey,
		OpenAIBaseURL:   cfg.LLM.OpenAIBaseURL,
		GeminiBaseURL:   cfg.LLM.GeminiBaseURL,
		BytePlusBaseURL: cfg.LLM.BytePlusBaseURL,
		SessionCacheTTL: cfg.Cache.SessionTTL,
		RateLimiter: llm.RateLimiterConfig{
			Enabled:           cfg.LLM.RateLimit.Enabled,
			RequestsPerSecond: cfg.LLM.RateLimit.RequestsPerSecond,
			BurstCapacity:     cfg.LLM.RateLimit.BurstCapacity,
		},
	})
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}
	gateway := llm.NewGateway(provider,
		llm.WithLogger(logger.Named("llm")),
		llm.WithTracer(metrics),
		llm.WithProperties(props),
		llm.WithPromptSink(st),
		llm.WithMinCacheChars(cfg.Cache.MinTokens*charsPerToken))

	// Prompt assets: embedded defaults, user overrides on disk,
	// hot-reloaded.
	registry := prompts.NewRegistry(promptsDir,
		prompts.WithDefaults(promptassets.FS()),
		prompts.WithRegistryLogger(logger.Named("prompts")))
	if err := registry.Load(); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	go func() {
		if err := registry.Watch(ctx); err != nil {
			logger.Warn("prompt hot-reload unavailable", zap.Error(err))
		}
	}()

	// Event streams with LLM summarization.
	summarizer := agent.NewEventSummarizer(gateway, registry, logger.Named("summarizer"))
	streams := events.NewManager(events.Config{
		SummarizeAt:   cfg.Events.SummarizeAt,
		TailKeep:      cfg.Events.TailKeep,
		ExternalizeAt: cfg.Events.ExternalizeAt,
		Summarizer:    summarizer,
		Logger:        logger.Named("events"),
	})

	// Trigger queue with LLM session reconciliation.
	reconciler := agent.NewSessionReconciler(gateway, registry, logger.Named("reconciler"))
	queue := triggers.NewQueue(
		triggers.WithLogger(logger.Named("triggers")),
		triggers.WithReconciler(reconciler))

	// Action registry and executor.
	actionReg := actions.NewRegistry(actionsDir, actionIndex, logger.Named("actions"))
	if err := actionReg.LoadDir(ctx); err != nil {
		return fmt.Errorf("load actions: %w", err)
	}
	executor := actions.NewExecutor(actionReg, st,
		actions.WithExecLogger(logger.Named("executor")),
		actions.WithTracer(metrics),
		actions.WithTimeout(time.Duration(cfg.Executor.TimeoutSeconds)*time.Second))

	// Planner with few-shot retrieval over past task documents.
	docs, err := store.LoadTaskDocuments(documentsDir)
	if err != nil {
		return fmt.Errorf("load task documents: %w", err)
	}
	if err := planner.IndexDocuments(ctx, taskIndex, docs); err != nil {
		logger.Warn("task document indexing incomplete", zap.Error(err))
	}
	fewShot := planner.NewFewShot(taskIndex, docs, cfg.Planner.FewShotK, logger.Named("fewshot"))
	taskPlanner := planner.New(gateway, registry,
		planner.WithFewShot(fewShot),
		planner.WithLogger(logger.Named("planner")))

	// Task lifecycle manager.
	taskMgr := tasks.NewManager(taskPlanner, queue, streams, props, filepath.Join(dataDir, tasks.ScratchDirName),
		tasks.WithLogger(logger.Named("tasks")),
		tasks.WithSessionEnder(gateway),
		tasks.WithRecorder(st))

	// Builtin actions close over the task manager and the streams.
	runtime := agent.NewRuntime(taskMgr, streams, logger.Named("runtime"))
	if err := actions.RegisterBuiltins(ctx, actionReg, runtime); err != nil {
		return fmt.Errorf("register builtins: %w", err)
	}

	// Action router and the loop itself.
	selector := router.New(actionReg, gateway, registry,
		router.WithLogger(logger.Named("router")))
	contextBuilder := agent.NewContextBuilder(registry, prompts.NewEngine(), dataDir, logger.Named("context"))
	loop := agent.NewLoop(queue, gateway, selector, executor, taskMgr, streams, props, contextBuilder,
		agent.WithLogger(logger.Named("loop")),
		agent.WithTracer(metrics))

	// Progress feed.
	feedSrv := feed.NewServer(cfg.Feed.Addr, streams, queue, logger.Named("feed"))
	if err := feedSrv.Start(); err != nil {
		return err
	}

	// Recurring triggers.
	cronStore, err := triggers.NewStore(ctx, filepath.Join(dataDir, "schedules.db"), logger.Named("cron"))
	if err != nil {
		return fmt.Errorf("open schedule store: %w", err)
	}
	cron := triggers.NewCronSource(queue, cronStore, logger.Named("cron"))
	if err := cron.Start(ctx); err != nil {
		return fmt.Errorf("start cron: %w", err)
	}

	logger.Info("agent kernel ready",
		zap.String("data_dir", dataDir),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("feed", feedSrv.Addr()),
		zap.Int("actions", actionReg.Len()))

	runErr := loop.Run(ctx)

	// Graceful shutdown: stop intake first, then in-flight work, then
	// persistence.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	cron.Stop(shutdownCtx)
	if err := feedSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("feed shutdown", zap.Error(err))
	}
	executor.Shutdown()
	if err := cronStore.Close(); err != nil {
		logger.Warn("schedule store close", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Warn("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return runErr
}
