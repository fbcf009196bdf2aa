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

// Package search provides the vector index behind action routing and
// few-shot task retrieval. The core contract is two operations: index
// a document under an id, and search by text for the k nearest ids.
package search

import "context"

// Result is one search hit.
type Result struct {
	ID         string
	Content    string
	Similarity float32
}

// Index is the minimal vector index the runtime depends on.
type Index interface {
	Index(ctx context.Context, id, text string) error
	Search(ctx context.Context, query string, k int) ([]Result, error)
	Remove(ctx context.Context, id string) error
	Count() int
}

// IDs projects results to their ids, preserving rank order.
func IDs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
