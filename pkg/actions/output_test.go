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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputSalvagesNoisyStdout(t *testing.T) {
	out := ParseOutput("STARTING\n{\"result\": 42}\nDONE")
	require.Contains(t, out, "result")
	assert.EqualValues(t, 42, out["result"])
}

func TestParseOutputStripsANSI(t *testing.T) {
	out := ParseOutput("\x1b[31mBanner\x1b[0m\n{\"a\":1}\n")
	assert.EqualValues(t, 1, out["a"])
}

func TestParseOutputTakesLastValue(t *testing.T) {
	out := ParseOutput(`{"step": "first"}` + "\nprogress 50%\n" + `{"step": "second"}`)
	assert.Equal(t, "second", out["step"])
}

func TestParseOutputWrapsArray(t *testing.T) {
	out := ParseOutput("[1, 2, 3]")
	require.Contains(t, out, "result")
	assert.Len(t, out["result"], 3)
}

func TestParseOutputNoJSONKeepsRaw(t *testing.T) {
	out := ParseOutput("\x1b[1mall done\x1b[0m\n")
	assert.Equal(t, map[string]any{"raw_output": "all done"}, out)
}

func TestParseOutputBracesInsideStrings(t *testing.T) {
	out := ParseOutput(`log: pattern "{incomplete"` + "\n" + `{"msg": "a { inside"}`)
	assert.Equal(t, "a { inside", out["msg"])
}

func TestFireAtDelay(t *testing.T) {
	delay, ok := FireAtDelay(map[string]any{"fire_at_delay": 2.5})
	require.True(t, ok)
	assert.Equal(t, 2.5, delay)

	delay, ok = FireAtDelay(map[string]any{"fire_at_delay": 3})
	require.True(t, ok)
	assert.Equal(t, 3.0, delay)

	_, ok = FireAtDelay(map[string]any{"other": 1})
	assert.False(t, ok)

	_, ok = FireAtDelay(map[string]any{"fire_at_delay": "soon"})
	assert.False(t, ok)
}
