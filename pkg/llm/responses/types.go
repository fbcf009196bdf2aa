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
package responses

// Request is a request to the Responses API. PreviousResponseID chains
// onto stored provider-side context; Store controls whether this
// response extends the chain.
type Request struct {
	Model              string  `json:"model"`
	Instructions       string  `json:"instructions,omitempty"`
	Input              string  `json:"input"`
	PreviousResponseID string  `json:"previous_response_id,omitempty"`
	Store              *bool   `json:"store,omitempty"`
	MaxOutputTokens    int     `json:"max_output_tokens,omitempty"`
	Temperature        float64 `json:"temperature,omitempty"`
}

// Response is a response from the Responses API.
type Response struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output []OutputItem `json:"output"`
	Usage  Usage        `json:"usage"`
}

// OutputItem is one entry in the output list.
type OutputItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role,omitempty"`
	Content []OutputContent `json:"content,omitempty"`
}

// OutputContent is one content part of a message output item.
type OutputContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage is token accounting.
type Usage struct {
	InputTokens        int                 `json:"input_tokens"`
	OutputTokens       int                 `json:"output_tokens"`
	TotalTokens        int                 `json:"total_tokens"`
	InputTokensDetails *InputTokensDetails `json:"input_tokens_details,omitempty"`
}

// InputTokensDetails breaks down input tokens.
type InputTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}
