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
	"sync"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/csync"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// Observer receives every event logged to any stream owned by the
// Manager. Observers run on the logging goroutine and must not block.
type Observer func(sessionID string, ev types.Event)

// Manager owns one Stream per session id and fans logged events out to
// observers.
type Manager struct {
	cfg     Config
	streams *csync.Map[string, *Stream]

	obsMu     sync.RWMutex
	observers []Observer
}

// NewManager creates a Manager whose streams share cfg.
func NewManager(cfg Config) *Manager {
	m := &Manager{streams: csync.NewMap[string, *Stream]()}
	cfg.OnEvent = m.publish
	m.cfg = cfg
	return m
}

// GetOrCreate returns the stream for sessionID, creating it on first
// use.
func (m *Manager) GetOrCreate(sessionID string) *Stream {
	if s, ok := m.streams.Get(sessionID); ok {
		return s
	}
	s, _ := m.streams.GetOrSet(sessionID, NewStream(sessionID, m.cfg))
	return s
}

// Get returns the stream for sessionID if it exists.
func (m *Manager) Get(sessionID string) (*Stream, bool) {
	return m.streams.Get(sessionID)
}

// Drop removes the stream for sessionID.
func (m *Manager) Drop(sessionID string) {
	m.streams.Delete(sessionID)
}

// RegisterObserver adds fn to the fan-out list. There is no
// deregistration; observers live as long as the process.
func (m *Manager) RegisterObserver(fn Observer) {
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

func (m *Manager) publish(sessionID string, ev types.Event) {
	m.obsMu.RLock()
	obs := m.observers
	m.obsMu.RUnlock()
	for _, fn := range obs {
		fn(sessionID, ev)
	}
}
