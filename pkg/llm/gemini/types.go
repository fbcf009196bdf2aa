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

// GenerateRequest is a request to the generateContent endpoint. When
// CachedContent names a cache object the system instruction must be
// omitted; it lives in the cache.
type GenerateRequest struct {
	SystemInstruction *Content          `json:"system_instruction,omitempty"`
	Contents          []Content         `json:"contents"`
	CachedContent     string            `json:"cachedContent,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one content part.
type Part struct {
	Text string `json:"text,omitempty"`
}

// GenerationConfig tunes sampling.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// GenerateResponse is a response from generateContent.
type GenerateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata is token accounting. CachedContentTokenCount counts
// prompt tokens served from a cache object or the implicit cache.
type UsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
}

// CachedContentRequest creates an explicit cache object holding a
// system instruction.
type CachedContentRequest struct {
	Model             string   `json:"model"`
	SystemInstruction *Content `json:"system_instruction,omitempty"`
	TTL               string   `json:"ttl,omitempty"`
	DisplayName       string   `json:"displayName,omitempty"`
}

// CachedContentResponse names the created cache object.
type CachedContentResponse struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	DisplayName string `json:"displayName,omitempty"`
	ExpireTime  string `json:"expireTime,omitempty"`
}
