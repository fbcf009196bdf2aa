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
package llm

import (
	"errors"
	"strings"
)

// ErrContextOverflow marks a provider rejection caused by the request
// exceeding the model's context window.
var ErrContextOverflow = errors.New("context length exceeded")

// overflowMarkers are the fragments providers put in their overflow
// rejections. Matching is case-insensitive on the whole error text.
var overflowMarkers = []string{
	"context length exceeded",
	"context_length_exceeded",
	"maximum context length",
	"exceeds the maximum length",
	"exceeds the maximum number of tokens",
	"input is too long",
	"too many tokens",
	"prompt is too long",
}

// IsContextOverflow reports whether err looks like a context-window
// rejection from any provider.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextOverflow) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, m := range overflowMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
