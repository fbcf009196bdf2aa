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
package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// gatedSummarizer blocks inside Summarize until released, so tests can
// interleave logging with an in-flight fold.
type gatedSummarizer struct {
	started chan struct{}
	release chan struct{}
	result  string
	err     error
	calls   atomic.Int32
	prev    string
	chunk   string
}

func newGatedSummarizer(result string, err error) *gatedSummarizer {
	return &gatedSummarizer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  result,
		err:     err,
	}
}

func (g *gatedSummarizer) Summarize(_ context.Context, previous, chunk string) (string, error) {
	if g.calls.Add(1) == 1 {
		g.prev, g.chunk = previous, chunk
		close(g.started)
	}
	<-g.release
	return g.result, g.err
}

func waitStarted(t *testing.T, g *gatedSummarizer) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("summarizer never invoked")
	}
}

func TestFoldKeepsLateEvents(t *testing.T) {
	g := newGatedSummarizer("what happened so far", nil)
	s := NewStream("sess", Config{SummarizeAt: 30, TailKeep: 15, Summarizer: g})

	for i := 0; i < 30; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("ev %d", i))
	}
	waitStarted(t, g)

	for i := 0; i < 5; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("late %d", i))
	}
	close(g.release)

	require.Eventually(t, func() bool { return s.TailLen() == 20 },
		2*time.Second, 10*time.Millisecond, "tail = kept 15 + 5 logged during the await")

	assert.Equal(t, "what happened so far", s.HeadSummary())
	evs := s.Events()
	assert.Equal(t, "ev 15", evs[0].Message, "cutoff removed exactly the first 15")
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("late %d", i), evs[15+i].Message)
	}

	// The chunk handed to the model covered the folded entries only.
	assert.Contains(t, g.chunk, "ev 0")
	assert.Contains(t, g.chunk, "ev 14")
	assert.NotContains(t, g.chunk, "ev 15")
	assert.Empty(t, g.prev, "first fold has no previous summary")
}

func TestFoldErrorKeepsStreamUnchanged(t *testing.T) {
	g := newGatedSummarizer("", errors.New("model unavailable"))
	s := NewStream("sess", Config{SummarizeAt: 10, TailKeep: 5, Summarizer: g})

	for i := 0; i < 10; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("ev %d", i))
	}
	waitStarted(t, g)
	close(g.release)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.summarizing
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 10, s.TailLen())
	assert.Empty(t, s.HeadSummary())
}

func TestFoldEmptySummaryKeepsStreamUnchanged(t *testing.T) {
	g := newGatedSummarizer("   \n", nil)
	s := NewStream("sess", Config{SummarizeAt: 10, TailKeep: 5, Summarizer: g})

	for i := 0; i < 10; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("ev %d", i))
	}
	waitStarted(t, g)
	close(g.release)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.summarizing
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 10, s.TailLen())
	assert.Empty(t, s.HeadSummary())
}

func TestFoldSingleFlight(t *testing.T) {
	g := newGatedSummarizer("summary", nil)
	s := NewStream("sess", Config{SummarizeAt: 10, TailKeep: 5, Summarizer: g})

	for i := 0; i < 10; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("ev %d", i))
	}
	waitStarted(t, g)

	// Way past the threshold again while the first fold is in flight.
	for i := 0; i < 15; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("more %d", i))
	}
	assert.Equal(t, int32(1), g.calls.Load(), "no second fold while one is in flight")
	close(g.release)

	require.Eventually(t, func() bool { return s.HeadSummary() == "summary" },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 20, s.TailLen(), "5 kept + 15 late")
}

func TestClearDuringFoldDiscardsResult(t *testing.T) {
	g := newGatedSummarizer("stale summary", nil)
	s := NewStream("sess", Config{SummarizeAt: 10, TailKeep: 5, Summarizer: g})

	for i := 0; i < 10; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("ev %d", i))
	}
	waitStarted(t, g)
	s.Clear()
	close(g.release)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.summarizing
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, s.HeadSummary(), "result from before the clear is dropped")
	assert.Equal(t, 0, s.TailLen())
}

func TestSnapshotIncludesSummaryWhenAsked(t *testing.T) {
	g := newGatedSummarizer("compacted history", nil)
	s := NewStream("sess", Config{SummarizeAt: 10, TailKeep: 5, Summarizer: g})

	for i := 0; i < 10; i++ {
		s.Log(types.EventReasoning, fmt.Sprintf("ev %d", i))
	}
	waitStarted(t, g)
	close(g.release)
	require.Eventually(t, func() bool { return s.HeadSummary() != "" },
		2*time.Second, 10*time.Millisecond)

	with := s.PromptSnapshot(true)
	assert.Contains(t, with, "Summary of folded event stream:\ncompacted history")
	assert.Contains(t, with, "Recent Event:\n")

	without := s.PromptSnapshot(false)
	assert.NotContains(t, without, "Summary of folded event stream:")
}
