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
// Package jsonx recovers JSON values from model output and noisy
// process stdout: code fences, leading prose, trailing logs, and the
// usual malformed-JSON slips (trailing commas, single quotes).
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StripFences removes a surrounding markdown code fence, with or
// without a language tag, returning the inner text. Input without a
// fence is returned trimmed.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		first := strings.TrimSpace(t[:i])
		// A language tag is a short bare word such as "json".
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]\"") {
			t = t[i+1:]
		}
	}
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// Decode unmarshals model output into v. It strips code fences, tries
// a strict parse, and falls back to jsonrepair for recoverable damage.
func Decode(raw string, v any) error {
	text := StripFences(raw)
	if text == "" {
		return fmt.Errorf("empty output")
	}
	strictErr := json.Unmarshal([]byte(text), v)
	if strictErr == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("parse output: %w", strictErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("parse output: %w", strictErr)
	}
	return nil
}

// ExtractLast returns the last complete top-level JSON object or array
// embedded in s, scanning with string/escape awareness so braces inside
// string literals do not confuse the balance. The second result is
// false when no complete value is present.
func ExtractLast(s string) (string, bool) {
	last := ""
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '{' && c != '[' {
			continue
		}
		if end, ok := scanBalanced(s, i); ok {
			candidate := s[i : end+1]
			if json.Valid([]byte(candidate)) {
				last = candidate
				i = end
			}
		}
	}
	return last, last != ""
}

// scanBalanced finds the index of the closer matching the opener at
// start, honoring JSON string literals and escapes.
func scanBalanced(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}

// ParseFeedback formats a correction block appended to a retry prompt
// after a failed decode: the offending output plus the parser error.
func ParseFeedback(raw string, err error) string {
	out := strings.TrimSpace(raw)
	if len(out) > 2000 {
		out = out[:2000] + "..."
	}
	return fmt.Sprintf(
		"Your previous reply could not be parsed as JSON.\nReply: %s\nError: %v\nReturn only a valid JSON object, with no surrounding text.",
		out, err)
}
