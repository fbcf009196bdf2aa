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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputAccepts(t *testing.T) {
	action := &Action{
		Name: "write file",
		InputSchema: map[string]SchemaField{
			"path":    {Type: "str"},
			"content": {Type: "str"},
			"append":  {Type: "bool"},
		},
	}
	err := ValidateInput(action, map[string]any{
		"path":    "/tmp/out.txt",
		"content": "hello",
		"append":  false,
	})
	assert.NoError(t, err)
}

func TestValidateInputMissingField(t *testing.T) {
	action := &Action{
		Name: "write file",
		InputSchema: map[string]SchemaField{
			"path":    {Type: "str"},
			"content": {Type: "str"},
		},
	}
	err := ValidateInput(action, map[string]any{"path": "/tmp/out.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content")
	assert.Contains(t, err.Error(), "write file")
}

func TestValidateInputWrongType(t *testing.T) {
	action := &Action{
		Name: "wait",
		InputSchema: map[string]SchemaField{
			"seconds": {Type: "float"},
		},
	}
	err := ValidateInput(action, map[string]any{"seconds": "ten"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seconds")
}

func TestValidateInputEmptySchemaAcceptsAnything(t *testing.T) {
	action := &Action{Name: "ignore"}
	assert.NoError(t, ValidateInput(action, nil))
	assert.NoError(t, ValidateInput(action, map[string]any{"anything": 1}))
}

func TestValidateInputNilInputAgainstRequired(t *testing.T) {
	action := &Action{
		Name:        "greet",
		InputSchema: map[string]SchemaField{"name": {Type: "str"}},
	}
	err := ValidateInput(action, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestValidateInputPythonishTypes(t *testing.T) {
	action := &Action{
		Name: "batch",
		InputSchema: map[string]SchemaField{
			"items": {Type: "list"},
			"opts":  {Type: "dict"},
			"limit": {Type: "int"},
		},
	}
	err := ValidateInput(action, map[string]any{
		"items": []any{"a", "b"},
		"opts":  map[string]any{"dry_run": true},
		"limit": json.Number("5"),
	})
	assert.NoError(t, err)
}
