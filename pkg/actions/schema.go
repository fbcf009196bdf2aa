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
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// jsonSchemaType maps an action schema field type to a JSON Schema
// type. Field types come from hand-written action files, so both the
// short and the JSON Schema spellings are accepted. Unknown types
// return "" and the field is left unconstrained.
func jsonSchemaType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "str", "string":
		return "string"
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "dict", "object", "map":
		return "object"
	case "list", "array":
		return "array"
	default:
		return ""
	}
}

// compileSchema converts an action input_schema into a JSON Schema
// document. Every declared field is required: actions read their
// inputs positionally off stdin and a missing field is a routing bug,
// not a default to guess at.
func compileSchema(fields map[string]SchemaField) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for name, f := range fields {
		prop := map[string]any{}
		if t := jsonSchemaType(f.Type); t != "" {
			prop["type"] = t
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		props[name] = prop
		required = append(required, name)
	}
	sort.Strings(required)
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ValidateInput checks input against the action's input_schema. A nil
// or empty schema accepts anything. Violations come back as one error
// listing every failed constraint so the router can re-prompt with the
// full picture.
func ValidateInput(action *Action, input map[string]any) error {
	if len(action.InputSchema) == 0 {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}
	schemaLoader := gojsonschema.NewGoLoader(compileSchema(action.InputSchema))
	inputLoader := gojsonschema.NewGoLoader(input)

	result, err := gojsonschema.Validate(schemaLoader, inputLoader)
	if err != nil {
		return fmt.Errorf("validate input for %q: %w", action.Name, err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, verr := range result.Errors() {
			msgs[i] = verr.String()
		}
		sort.Strings(msgs)
		return fmt.Errorf("invalid input for %q: %s", action.Name, strings.Join(msgs, "; "))
	}
	return nil
}
