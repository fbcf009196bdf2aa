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

package planner

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/search"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/store"
)

// DefaultTopK is how many example documents seed a planning prompt.
const DefaultTopK = 1

// FewShot retrieves task documents similar to the task being planned.
// Documents are loaded once at startup; the index maps queries back to
// their ids.
type FewShot struct {
	index  search.Index
	docs   map[string]store.TaskDocument
	k      int
	logger *zap.Logger
}

// NewFewShot builds a retriever over already-indexed documents. k <= 0
// uses DefaultTopK.
func NewFewShot(index search.Index, docs []store.TaskDocument, k int, logger *zap.Logger) *FewShot {
	if k <= 0 {
		k = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[string]store.TaskDocument, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	return &FewShot{index: index, docs: byID, k: k, logger: logger}
}

// IndexDocuments (re)indexes every document under its id. AddDocument
// replaces on identical ids, so startup reindexing is idempotent.
func IndexDocuments(ctx context.Context, index search.Index, docs []store.TaskDocument) error {
	for _, d := range docs {
		if err := index.Index(ctx, d.ID, d.IndexText()); err != nil {
			return err
		}
	}
	return nil
}

// Examples returns the top-k similar documents formatted as a prompt
// block, or "" when nothing relevant is stored. Retrieval failures are
// logged and treated as no examples; planning proceeds without them.
func (f *FewShot) Examples(ctx context.Context, query string) string {
	if f.index == nil || len(f.docs) == 0 {
		return ""
	}
	results, err := f.index.Search(ctx, query, f.k)
	if err != nil {
		f.logger.Warn("example retrieval failed", zap.Error(err))
		return ""
	}
	blocks := make([]string, 0, len(results))
	for _, res := range results {
		doc, ok := f.docs[res.ID]
		if !ok {
			continue
		}
		blocks = append(blocks, doc.IndexText())
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
