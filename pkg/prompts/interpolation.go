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
package prompts

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Interpolate substitutes {{.name}} placeholders in template with the
// values in vars. Placeholders without a value become empty strings;
// their names come back in the second result so callers can warn.
// Values keep their newlines intact: templates interpolate whole
// composed blocks (event snapshots, task JSON), not single words.
func Interpolate(template string, vars map[string]any) (string, []string) {
	if template == "" {
		return "", nil
	}

	var missing []string
	seen := make(map[string]bool)
	result := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "{{."), "}}")
		value, ok := vars[name]
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			return ""
		}
		return stringify(value)
	})
	return result, missing
}

// stringify renders a variable value for prompt text. Strings pass
// through cleaned of NUL bytes and invalid UTF-8; everything else goes
// through fmt.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return clean(v)
	case nil:
		return ""
	case []string:
		cleaned := make([]string, len(v))
		for i, s := range v {
			cleaned[i] = clean(s)
		}
		return strings.Join(cleaned, ", ")
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return clean(fmt.Sprintf("%v", v))
	}
}

func clean(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.ToValidUTF8(s, "")
}
