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
package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

func TestReconcileSkipsLLMWithoutPending(t *testing.T) {
	gen := &statelessStub{reply: `{"session_id": "ignored"}`}
	r := NewSessionReconciler(gen, &promptStub{}, nil)

	incoming := types.NewTrigger("chat", "hello", time.Now(), 1)
	id, err := r.Reconcile(context.Background(), incoming, nil)
	require.NoError(t, err)
	assert.Equal(t, "chat", id)
	assert.Empty(t, gen.calls)
}

func TestReconcileRehomesTrigger(t *testing.T) {
	gen := &statelessStub{reply: `{"session_id": "report-ab12cd34"}`}
	renderer := &promptStub{}
	r := NewSessionReconciler(gen, renderer, nil)

	incoming := types.NewTrigger("chat", "also add a summary section to the report", time.Now(), 1)
	pending := []types.Trigger{
		types.NewTrigger("report-ab12cd34", "Work on step 1: write.", time.Now(), 3),
	}
	id, err := r.Reconcile(context.Background(), incoming, pending)
	require.NoError(t, err)
	assert.Equal(t, "report-ab12cd34", id)

	assert.Equal(t, PromptReconcileSessions, renderer.name)
	assert.Contains(t, renderer.vars["incoming"], "also add a summary section")
	assert.Contains(t, renderer.vars["pending"], "report-ab12cd34")
}

func TestReconcileRejectsMalformedReply(t *testing.T) {
	r := NewSessionReconciler(&statelessStub{reply: "sure thing"}, &promptStub{}, nil)
	incoming := types.NewTrigger("chat", "hi", time.Now(), 1)
	pending := []types.Trigger{types.NewTrigger("t-1", "step", time.Now(), 3)}

	_, err := r.Reconcile(context.Background(), incoming, pending)
	require.Error(t, err)
}

func TestReconcileRejectsEmptySessionID(t *testing.T) {
	r := NewSessionReconciler(&statelessStub{reply: `{"session_id": ""}`}, &promptStub{}, nil)
	incoming := types.NewTrigger("chat", "hi", time.Now(), 1)
	pending := []types.Trigger{types.NewTrigger("t-1", "step", time.Now(), 3)}

	_, err := r.Reconcile(context.Background(), incoming, pending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_id")
}
