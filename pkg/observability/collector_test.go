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
package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(zap.NewNop())

	c.RecordMetric("llm.cache.hit", 1, map[string]string{"provider": "anthropic"})
	c.RecordMetric("llm.cache.hit", 1, map[string]string{"provider": "anthropic"})
	c.RecordMetric("llm.cache.hit", 1, map[string]string{"provider": "gemini"})
	c.RecordMetric("llm.tokens", 120, nil)

	assert.Equal(t, float64(2), c.Counter("llm.cache.hit", map[string]string{"provider": "anthropic"}))
	assert.Equal(t, float64(1), c.Counter("llm.cache.hit", map[string]string{"provider": "gemini"}))
	assert.Equal(t, float64(120), c.Counter("llm.tokens", nil))
	require.NoError(t, c.Flush(context.Background()))
}

func TestCollectorSpanParentLink(t *testing.T) {
	c := NewCollector(nil)

	ctx, parent := c.StartSpan(context.Background(), "agent.react")
	_, child := c.StartSpan(ctx, "llm.generate")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)

	c.EndSpan(child)
	c.EndSpan(parent)
	assert.NotZero(t, child.Duration)
}

func TestSpanRecordError(t *testing.T) {
	span := &Span{}
	span.RecordError(assert.AnError)
	assert.Equal(t, StatusError, span.Status.Code)
	assert.NotEmpty(t, span.Attributes["error.message"])

	ok := &Span{}
	ok.RecordError(nil)
	assert.Equal(t, StatusUnset, ok.Status.Code)
}
