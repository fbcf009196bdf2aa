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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Collector is the in-process tracer: spans go to the debug log,
// metrics accumulate in memory and are dumped on Flush. Counters are
// keyed by metric name plus sorted labels, so "llm.cache.hit" with
// different providers stays distinguishable.
type Collector struct {
	logger *zap.Logger

	mu       sync.Mutex
	counters map[string]float64
}

// NewCollector builds a collector. A nil logger means log nothing.
func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		logger:   logger,
		counters: make(map[string]float64),
	}
}

// StartSpan creates a span linked to any parent in ctx.
func (c *Collector) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := &Span{
		TraceID:    uuid.New().String(),
		SpanID:     uuid.New().String(),
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(span)
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	}
	return ContextWithSpan(ctx, span), span
}

// EndSpan completes the span and logs it at debug level.
func (c *Collector) EndSpan(span *Span) {
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	c.logger.Debug("span",
		zap.String("name", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("status", span.Status.Code.String()),
	)
}

// RecordMetric accumulates value into the labeled counter.
func (c *Collector) RecordMetric(name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	c.mu.Lock()
	c.counters[key] += value
	c.mu.Unlock()
}

// Counter returns the accumulated value for a metric with the given
// labels.
func (c *Collector) Counter(name string, labels map[string]string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[metricKey(name, labels)]
}

// Snapshot returns a copy of every counter.
func (c *Collector) Snapshot() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Flush logs the counter snapshot at info level.
func (c *Collector) Flush(ctx context.Context) error {
	for key, v := range c.Snapshot() {
		c.logger.Info("metric", zap.String("key", key), zap.Float64("value", v))
	}
	return nil
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

var _ Tracer = (*Collector)(nil)
