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
package triggers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// DefaultRecurringPriority is the priority recurring triggers enqueue
// with when the schedule does not set one.
const DefaultRecurringPriority = 5

// CronSource turns persisted schedules into queue triggers. Schedules
// use the standard 5-field cron format.
type CronSource struct {
	queue  *Queue
	store  *Store
	logger *zap.Logger

	mu      sync.Mutex
	engine  *cron.Cron
	entries map[string]cron.EntryID
}

// NewCronSource creates a source feeding queue from store.
func NewCronSource(queue *Queue, store *Store, logger *zap.Logger) *CronSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronSource{
		queue:   queue,
		store:   store,
		logger:  logger,
		engine:  cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads schedules from the store and begins firing them.
func (c *CronSource) Start(ctx context.Context) error {
	schedules, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	c.mu.Lock()
	for _, sched := range schedules {
		if !sched.Enabled {
			continue
		}
		if err := c.addLocked(sched); err != nil {
			c.logger.Error("failed to register schedule",
				zap.String("schedule_id", sched.ID),
				zap.String("cron", sched.Cron),
				zap.Error(err))
		}
	}
	c.mu.Unlock()

	c.engine.Start()
	c.logger.Info("cron source started", zap.Int("schedules", len(schedules)))
	return nil
}

// Stop halts firing and waits for in-flight jobs, bounded by ctx.
func (c *CronSource) Stop(ctx context.Context) {
	done := c.engine.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		c.logger.Warn("cron source shutdown timeout")
	}
}

// Add validates, persists, and registers a new schedule. A missing id,
// session, or priority is filled in.
func (c *CronSource) Add(ctx context.Context, sched *Schedule) error {
	if sched.Description == "" {
		return fmt.Errorf("schedule description is required")
	}
	if _, err := cron.ParseStandard(sched.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sched.Cron, err)
	}
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if sched.SessionID == "" {
		sched.SessionID = types.SessionChat
	}
	if sched.Priority <= 0 {
		sched.Priority = DefaultRecurringPriority
	}
	sched.Enabled = true
	sched.NextRunAt = c.nextRun(sched.Cron, time.Now())

	if err := c.store.Create(ctx, sched); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.addLocked(sched); err != nil {
		return err
	}
	c.logger.Info("schedule added",
		zap.String("schedule_id", sched.ID),
		zap.String("name", sched.Name),
		zap.String("cron", sched.Cron))
	return nil
}

// Remove unregisters and deletes a schedule.
func (c *CronSource) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	if entryID, ok := c.entries[id]; ok {
		c.engine.Remove(entryID)
		delete(c.entries, id)
	}
	c.mu.Unlock()
	return c.store.Delete(ctx, id)
}

// List returns all persisted schedules.
func (c *CronSource) List(ctx context.Context) ([]*Schedule, error) {
	return c.store.List(ctx)
}

func (c *CronSource) addLocked(sched *Schedule) error {
	id := sched.ID
	entryID, err := c.engine.AddFunc(sched.Cron, func() { c.fire(id) })
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}
	c.entries[id] = entryID
	return nil
}

// fire enqueues one trigger for the schedule and records the run. The
// schedule is re-read so edits between firings take effect.
func (c *CronSource) fire(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched, err := c.store.Get(ctx, id)
	if err != nil {
		c.logger.Warn("schedule vanished before firing", zap.String("schedule_id", id), zap.Error(err))
		return
	}

	now := time.Now()
	trig := types.NewTrigger(sched.SessionID, sched.Description, now, sched.Priority)
	if len(sched.Payload) > 0 {
		trig.Payload = sched.Payload
	}
	c.queue.Put(ctx, trig)

	if err := c.store.MarkRun(ctx, id, now.Unix(), c.nextRun(sched.Cron, now), nil); err != nil {
		c.logger.Warn("failed to record schedule run", zap.String("schedule_id", id), zap.Error(err))
	}
	c.logger.Debug("recurring trigger enqueued",
		zap.String("schedule_id", id),
		zap.String("session_id", sched.SessionID))
}

func (c *CronSource) nextRun(expr string, after time.Time) int64 {
	parsed, err := cron.ParseStandard(expr)
	if err != nil {
		return 0
	}
	return parsed.Next(after).Unix()
}
