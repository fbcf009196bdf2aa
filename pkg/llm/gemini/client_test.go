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
package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

// newServer serves both cachedContents creation and generateContent.
func newServer(t *testing.T, lastGenerate *GenerateRequest, cacheCreated *bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/cachedContents") && r.Method == http.MethodPost:
			if cacheCreated != nil {
				*cacheCreated = true
			}
			_ = json.NewEncoder(w).Encode(CachedContentResponse{Name: "cachedContents/cc1"})
		case strings.Contains(r.URL.Path, ":generateContent") || strings.HasSuffix(r.URL.Path, "generateContent"):
			if lastGenerate != nil {
				_ = json.NewDecoder(r.Body).Decode(lastGenerate)
			}
			_ = json.NewEncoder(w).Encode(GenerateResponse{
				Candidates: []Candidate{{Content: Content{Role: "model", Parts: []Part{{Text: "out"}}}}},
				UsageMetadata: &UsageMetadata{
					PromptTokenCount:        30,
					CandidatesTokenCount:    5,
					CachedContentTokenCount: 25,
				},
			})
		case r.Method == http.MethodDelete:
			_, _ = w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSessionCreatesCacheObject(t *testing.T) {
	var got GenerateRequest
	created := false
	server := newServer(t, &got, &created)
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	session := &llm.SessionState{SystemPrompt: "big system prompt", CallType: llm.CallReasoning}

	resp, err := client.Generate(context.Background(), &llm.Request{
		System:       "big system prompt",
		User:         "go",
		CacheEnabled: true,
		Session:      session,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !created {
		t.Error("expected a cachedContents object to be created on first session call")
	}
	if resp.Handle != "cachedContents/cc1" {
		t.Errorf("expected handle cachedContents/cc1, got %q", resp.Handle)
	}
	if got.CachedContent != "cachedContents/cc1" {
		t.Errorf("generate call must reference the cache object, got %q", got.CachedContent)
	}
	if got.SystemInstruction != nil {
		t.Error("system instruction must be omitted when a cache object is referenced")
	}
	if resp.CachedTokens != 25 {
		t.Errorf("expected 25 cached tokens, got %d", resp.CachedTokens)
	}
}

func TestSessionReusesHandle(t *testing.T) {
	var got GenerateRequest
	created := false
	server := newServer(t, &got, &created)
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	session := &llm.SessionState{
		SystemPrompt: "sys",
		Handle:       "cachedContents/old",
		History: []llm.Turn{
			{Role: "user", Content: "q1"},
			{Role: "assistant", Content: "a1"},
		},
	}
	_, err := client.Generate(context.Background(), &llm.Request{
		System: "sys", User: "q2", CacheEnabled: true, Session: session,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if created {
		t.Error("existing handle must be reused, not recreated")
	}
	if got.CachedContent != "cachedContents/old" {
		t.Errorf("expected reuse of old handle, got %q", got.CachedContent)
	}
	if len(got.Contents) != 3 {
		t.Errorf("expected history + user contents, got %d", len(got.Contents))
	}
	if got.Contents[1].Role != "model" {
		t.Errorf("assistant turns map to role model, got %q", got.Contents[1].Role)
	}
}

func TestOneShotUsesImplicitCache(t *testing.T) {
	var got GenerateRequest
	server := newServer(t, &got, nil)
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), &llm.Request{System: "sys", User: "u"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.CachedContent != "" {
		t.Errorf("one-shot calls must not reference cache objects, got %q", got.CachedContent)
	}
	if got.SystemInstruction == nil {
		t.Error("one-shot calls carry the system instruction inline")
	}
}
