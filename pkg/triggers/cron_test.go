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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

func TestCronSourceAddValidates(t *testing.T) {
	q := NewQueue()
	src := NewCronSource(q, newTestStore(t), nil)
	ctx := context.Background()

	err := src.Add(ctx, &Schedule{Cron: "0 9 * * *"})
	assert.Error(t, err, "description required")

	err = src.Add(ctx, &Schedule{Cron: "not a cron", Description: "x"})
	assert.Error(t, err)

	sched := &Schedule{Cron: "0 9 * * *", Description: "morning digest"}
	require.NoError(t, src.Add(ctx, sched))
	assert.NotEmpty(t, sched.ID, "id filled in")
	assert.Equal(t, types.SessionChat, sched.SessionID)
	assert.Equal(t, DefaultRecurringPriority, sched.Priority)
	assert.NotZero(t, sched.NextRunAt)

	list, err := src.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCronSourceFireEnqueues(t *testing.T) {
	q := NewQueue()
	store := newTestStore(t)
	src := NewCronSource(q, store, nil)
	ctx := context.Background()

	sched := &Schedule{
		Cron:        "* * * * *",
		Description: "poll the shared mailbox",
		Payload:     map[string]any{"mailbox": "support"},
	}
	require.NoError(t, src.Add(ctx, sched))

	src.fire(sched.ID)

	require.Equal(t, 1, q.Size())
	got, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.SessionChat, got.SessionID)
	assert.Equal(t, "poll the shared mailbox", got.NextActionDescription)
	assert.Equal(t, "support", got.Payload["mailbox"])

	persisted, err := store.Get(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), persisted.TotalRuns)
	assert.NotZero(t, persisted.LastRunAt)
}

func TestCronSourceRemove(t *testing.T) {
	q := NewQueue()
	src := NewCronSource(q, newTestStore(t), nil)
	ctx := context.Background()

	sched := &Schedule{Cron: "0 9 * * *", Description: "digest"}
	require.NoError(t, src.Add(ctx, sched))
	require.NoError(t, src.Remove(ctx, sched.ID))

	list, err := src.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	src.mu.Lock()
	assert.Empty(t, src.entries)
	src.mu.Unlock()
}

func TestCronSourceStartLoadsEnabled(t *testing.T) {
	q := NewQueue()
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Schedule{
		ID: "on", Name: "on", Cron: "0 9 * * *",
		Description: "active", SessionID: "chat", Priority: 5, Enabled: true,
	}))
	require.NoError(t, store.Create(ctx, &Schedule{
		ID: "off", Name: "off", Cron: "0 9 * * *",
		Description: "paused", SessionID: "chat", Priority: 5, Enabled: false,
	}))

	src := NewCronSource(q, store, nil)
	require.NoError(t, src.Start(ctx))
	defer src.Stop(ctx)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Contains(t, src.entries, "on")
	assert.NotContains(t, src.entries, "off")
}
