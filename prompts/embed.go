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

// Package promptassets embeds the default prompt set into the binary,
// so the agent runs without a prompts directory. Files in the
// configured prompts dir overlay these defaults by key.
package promptassets

import "embed"

//go:embed *.yaml
var fs embed.FS

// FS returns the embedded default prompt assets.
func FS() embed.FS { return fs }
