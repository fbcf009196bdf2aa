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

// Package triggers implements the prioritized, time-aware trigger queue
// that drives the agent loop, plus a cron-backed recurring source whose
// schedules persist in SQLite.
package triggers

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Reconciler decides which session an incoming trigger should join when
// other triggers are already pending. The agent backs it with an LLM
// call; a nil Reconciler keeps the caller-supplied session id.
type Reconciler interface {
	Reconcile(ctx context.Context, incoming types.Trigger, pending []types.Trigger) (string, error)
}

// item is one queued trigger. seq preserves arrival order so merged
// descriptions read oldest first.
type item struct {
	trig types.Trigger
	seq  uint64
}

// triggerHeap orders by (FireAt, Priority), arrival as the tiebreak.
type triggerHeap []*item

func (h triggerHeap) Len() int { return len(h) }
func (h triggerHeap) Less(i, j int) bool {
	if h[i].trig.FireAt != h[j].trig.FireAt || h[i].trig.Priority != h[j].trig.Priority {
		return h[i].trig.Before(h[j].trig)
	}
	return h[i].seq < h[j].seq
}
func (h triggerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *triggerHeap) Push(x any)        { *h = append(*h, x.(*item)) }
func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue delivers triggers in (FireAt, Priority) order with per-session
// coalescing. Producers never block on consumer waits; Get blocks until
// a trigger is due or the context ends.
type Queue struct {
	logger     *zap.Logger
	reconciler Reconciler

	mu   sync.Mutex
	cond *sync.Cond
	heap triggerHeap
	seq  uint64
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l *zap.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

// WithReconciler enables session reconciliation on Put.
func WithReconciler(r Reconciler) QueueOption {
	return func(q *Queue) { q.reconciler = r }
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(q)
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put inserts trig, first reconciling its session against pending
// triggers, then absorbing every pending entry of the chosen session
// into trig. The reconciler runs outside the lock; its answer is
// validated under the lock and an id that is neither the caller's nor
// live in the heap falls back to the caller's.
func (q *Queue) Put(ctx context.Context, trig types.Trigger) {
	callerID := trig.SessionID

	if q.reconciler != nil {
		pending := q.List()
		if len(pending) > 0 {
			id, err := q.reconciler.Reconcile(ctx, trig, pending)
			if err != nil {
				q.logger.Warn("session reconciliation failed, keeping caller session",
					zap.String("session_id", callerID),
					zap.Error(err))
			} else if id != "" {
				trig.SessionID = id
			}
		}
	}

	q.mu.Lock()
	if trig.SessionID != callerID && !q.hasSessionLocked(trig.SessionID) {
		q.logger.Warn("reconciler chose an unknown session, keeping caller session",
			zap.String("chosen", trig.SessionID),
			zap.String("session_id", callerID))
		trig.SessionID = callerID
	}

	absorbed := q.takeSessionLocked(trig.SessionID)
	if len(absorbed) > 0 {
		trig = trig.Merge(absorbed...)
	}
	heap.Push(&q.heap, &item{trig: trig, seq: q.nextSeq()})
	q.cond.Signal()
	q.mu.Unlock()
}

// Get blocks until at least one trigger is due, then drains everything
// due, merges per session, and returns the most urgent merged trigger
// by (Priority, FireAt). The rest go back on the heap.
func (q *Queue) Get(ctx context.Context) (types.Trigger, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return types.Trigger{}, err
		}
		if len(q.heap) == 0 {
			q.cond.Wait()
			continue
		}
		now := nowSeconds()
		if q.heap[0].trig.FireAt > now {
			q.waitUntilLocked(q.heap[0].trig.FireAt - now)
			continue
		}

		ready := q.popDueLocked(now)
		merged := mergeBySession(ready)
		sort.Slice(merged, func(i, j int) bool {
			a, b := merged[i].trig, merged[j].trig
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			if a.FireAt != b.FireAt {
				return a.FireAt < b.FireAt
			}
			return merged[i].seq < merged[j].seq
		})

		best := merged[0]
		for _, it := range merged[1:] {
			heap.Push(&q.heap, it)
		}
		return best.trig, nil
	}
}

// Fire makes every trigger of sessionID due now.
func (q *Queue) Fire(sessionID string) {
	q.mu.Lock()
	now := nowSeconds()
	changed := false
	for _, it := range q.heap {
		if it.trig.SessionID == sessionID && it.trig.FireAt > now {
			it.trig.FireAt = now
			changed = true
		}
	}
	if changed {
		heap.Init(&q.heap)
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

// RemoveSessions deletes every trigger whose session id is in ids.
func (q *Queue) RemoveSessions(ids ...string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	q.mu.Lock()
	kept := q.heap[:0]
	for _, it := range q.heap {
		if !drop[it.trig.SessionID] {
			kept = append(kept, it)
		}
	}
	for i := len(kept); i < len(q.heap); i++ {
		q.heap[i] = nil
	}
	q.heap = kept
	heap.Init(&q.heap)
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Clear drops everything and wakes all waiters.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.heap = nil
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Size returns the number of pending triggers.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// List returns a copy of pending triggers ordered by (FireAt, Priority).
func (q *Queue) List() []types.Trigger {
	q.mu.Lock()
	out := make([]types.Trigger, len(q.heap))
	for i, it := range q.heap {
		out[i] = it.trig
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// HasSession reports whether any pending trigger belongs to sessionID.
func (q *Queue) HasSession(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasSessionLocked(sessionID)
}

func (q *Queue) nextSeq() uint64 {
	q.seq++
	return q.seq
}

func (q *Queue) hasSessionLocked(sessionID string) bool {
	for _, it := range q.heap {
		if it.trig.SessionID == sessionID {
			return true
		}
	}
	return false
}

// takeSessionLocked removes and returns sessionID's triggers in arrival
// order.
func (q *Queue) takeSessionLocked(sessionID string) []types.Trigger {
	var taken []*item
	kept := q.heap[:0]
	for _, it := range q.heap {
		if it.trig.SessionID == sessionID {
			taken = append(taken, it)
		} else {
			kept = append(kept, it)
		}
	}
	for i := len(kept); i < len(q.heap); i++ {
		q.heap[i] = nil
	}
	q.heap = kept
	if len(taken) > 0 {
		heap.Init(&q.heap)
	}

	sort.Slice(taken, func(i, j int) bool { return taken[i].seq < taken[j].seq })
	out := make([]types.Trigger, len(taken))
	for i, it := range taken {
		out[i] = it.trig
	}
	return out
}

// popDueLocked pops every trigger with FireAt <= now.
func (q *Queue) popDueLocked(now float64) []*item {
	var due []*item
	for len(q.heap) > 0 && q.heap[0].trig.FireAt <= now {
		due = append(due, heap.Pop(&q.heap).(*item))
	}
	return due
}

// mergeBySession collapses items sharing a session id into one item per
// session, joining descriptions oldest first.
func mergeBySession(ready []*item) []*item {
	groups := make(map[string][]*item)
	var order []string
	for _, it := range ready {
		if _, ok := groups[it.trig.SessionID]; !ok {
			order = append(order, it.trig.SessionID)
		}
		groups[it.trig.SessionID] = append(groups[it.trig.SessionID], it)
	}

	out := make([]*item, 0, len(order))
	for _, sid := range order {
		group := groups[sid]
		sort.Slice(group, func(i, j int) bool { return group[i].seq < group[j].seq })
		newest := group[len(group)-1]
		if len(group) > 1 {
			older := make([]types.Trigger, len(group)-1)
			for i, it := range group[:len(group)-1] {
				older[i] = it.trig
			}
			newest.trig = newest.trig.Merge(older...)
		}
		newest.seq = group[0].seq
		out = append(out, newest)
	}
	return out
}

// waitUntilLocked waits for d or an earlier wakeup. Caller holds q.mu;
// the timer reacquires it before broadcasting so the wakeup cannot race
// the wait.
func (q *Queue) waitUntilLocked(d float64) {
	wait := time.Duration(d * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	timer := time.AfterFunc(wait, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	q.cond.Wait()
	timer.Stop()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
