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

package actions

import (
	"encoding/json"
	"strings"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/ansiext"
	"github.com/zfoong/WhiteCollarAgent-sub000/internal/jsonx"
)

// OutputFireAtDelay is an optional output key: seconds until the
// follow-up trigger should fire. Absent means reschedule immediately.
const OutputFireAtDelay = "fire_at_delay"

// FireAtDelay reads OutputFireAtDelay from an action output, tolerating
// the numeric shapes JSON decoding produces.
func FireAtDelay(output map[string]any) (float64, bool) {
	switch v := output[OutputFireAtDelay].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseOutput salvages the action result from raw subprocess stdout.
// Bodies are told to print exactly one JSON object as the last value,
// but real scripts wrap it in banners, progress lines, and ANSI color.
// The parse strips escapes, takes the last complete top-level JSON
// value, and decodes it. A top-level array is wrapped under "result"
// so callers always see an object. Output with no JSON at all is kept
// verbatim under "raw_output"; exit code decides success, not shape.
func ParseOutput(stdout string) map[string]any {
	clean := ansiext.Strip(stdout)
	raw, ok := jsonx.ExtractLast(clean)
	if !ok {
		return rawOutput(clean)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return rawOutput(clean)
	}
	switch out := v.(type) {
	case map[string]any:
		return out
	default:
		return map[string]any{"result": v}
	}
}

func rawOutput(clean string) map[string]any {
	return map[string]any{"raw_output": strings.TrimSpace(clean)}
}
