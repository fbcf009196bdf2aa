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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "schedules.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sched := &Schedule{
		ID:          "s1",
		Name:        "morning digest",
		Cron:        "0 9 * * *",
		Description: "summarize overnight email",
		SessionID:   "chat",
		Priority:    5,
		Payload:     map[string]any{"folder": "inbox"},
		Enabled:     true,
	}
	require.NoError(t, store.Create(ctx, sched))
	assert.NotZero(t, sched.CreatedAt)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "morning digest", got.Name)
	assert.Equal(t, "0 9 * * *", got.Cron)
	assert.Equal(t, "inbox", got.Payload["folder"])
	assert.True(t, got.Enabled)

	_, err = store.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestStoreListUpdateDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.Create(ctx, &Schedule{
			ID: id, Name: id, Cron: "* * * * *",
			Description: "work", SessionID: "chat", Priority: 5, Enabled: true,
		}))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	first := list[0]
	first.Enabled = false
	first.Name = "renamed"
	require.NoError(t, store.Update(ctx, first))

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, store.Delete(ctx, first.ID))
	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	err = store.Update(ctx, &Schedule{ID: "gone"})
	assert.Error(t, err)
}

func TestStoreMarkRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Schedule{
		ID: "s1", Name: "n", Cron: "* * * * *",
		Description: "work", SessionID: "chat", Priority: 5, Enabled: true,
	}))

	now := time.Now().Unix()
	require.NoError(t, store.MarkRun(ctx, "s1", now, now+60, nil))
	require.NoError(t, store.MarkRun(ctx, "s1", now+60, now+120, assert.AnError))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalRuns)
	assert.Equal(t, now+60, got.LastRunAt)
	assert.Equal(t, now+120, got.NextRunAt)
	assert.Equal(t, assert.AnError.Error(), got.LastError)
}
