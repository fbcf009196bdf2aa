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

// Package feed is the local progress surface: every logged event fans
// out to an SSE stream per session, and instructions posted by the user
// become chat triggers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/events"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/tasks"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// TriggerSink accepts user instructions. *triggers.Queue satisfies it.
type TriggerSink interface {
	Put(ctx context.Context, trig types.Trigger)
}

// Server serves the feed. A Server with an empty address is disabled:
// Start and Shutdown are no-ops and the observer still runs (publishing
// to zero subscribers is free).
type Server struct {
	addr   string
	sink   TriggerSink
	sse    *sse.Server
	http   *http.Server
	ln     net.Listener
	logger *zap.Logger
}

// feedEvent is one SSE payload: the logged event plus its session.
type feedEvent struct {
	SessionID string `json:"session_id"`
	types.Event
}

// NewServer registers the feed as an event observer and builds its
// routes. addr is the bind address; empty disables serving.
func NewServer(addr string, ev *events.Manager, sink TriggerSink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{addr: addr, sink: sink, logger: logger}

	s.sse = sse.New()
	s.sse.AutoReplay = false
	// Subscribing before the session logs anything must work; the
	// stream is created on first subscribe.
	s.sse.AutoStream = true
	ev.RegisterObserver(s.publish)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", s.health)
	engine.GET("/events", gin.WrapF(s.sse.ServeHTTP))
	engine.POST("/instruct", s.instruct)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background. Bind failures
// surface here rather than in the serving goroutine.
func (s *Server) Start() error {
	if s.addr == "" {
		s.logger.Info("feed disabled")
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("feed listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Info("feed listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("feed server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address, empty before Start or when disabled.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown closes the SSE streams and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	s.sse.Close()
	return s.http.Shutdown(ctx)
}

// publish bridges one logged event onto the session's SSE stream.
func (s *Server) publish(sessionID string, ev types.Event) {
	data, err := json.Marshal(feedEvent{SessionID: sessionID, Event: ev})
	if err != nil {
		s.logger.Warn("feed event marshal failed", zap.Error(err))
		return
	}
	if !s.sse.StreamExists(sessionID) {
		s.sse.CreateStream(sessionID)
	}
	s.sse.Publish(sessionID, &sse.Event{
		Event: []byte(ev.Kind),
		Data:  data,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// instructRequest is the intake body. An omitted session_id lands the
// instruction on the standing chat session.
type instructRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

func (s *Server) instruct(c *gin.Context) {
	var req instructRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = types.SessionChat
	}
	s.sink.Put(c.Request.Context(), types.NewTrigger(sessionID, text, time.Now(), tasks.PriorityUser))
	c.JSON(http.StatusAccepted, gin.H{"session_id": sessionID})
}
