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
package search

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// Chromem is an Index backed by chromem-go. With a persist path the
// index survives restarts; an empty path keeps it in memory.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromem opens (or creates) the collection under persistPath.
// Documents added with an existing id replace the previous entry, so
// re-indexing a store from disk is idempotent.
func NewChromem(persistPath, collection string, embedder Embedder) (*Chromem, error) {
	if collection == "" {
		collection = "default"
	}
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}

	var (
		db  *chromem.DB
		err error
	)
	if persistPath != "" {
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	col, err := db.GetOrCreateCollection(collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Chromem{db: db, collection: col}, nil
}

// Index stores text under id, replacing any previous document with the
// same id.
func (c *Chromem) Index(ctx context.Context, id, text string) error {
	err := c.collection.AddDocument(ctx, chromem.Document{ID: id, Content: text})
	if err != nil {
		return fmt.Errorf("add document %s: %w", id, err)
	}
	return nil
}

// Search returns up to k nearest documents for query, best first. An
// empty collection returns no results.
func (c *Chromem) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	if n := c.collection.Count(); n == 0 {
		return nil, nil
	} else if k > n {
		k = n
	}

	hits, err := c.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{ID: h.ID, Content: h.Content, Similarity: h.Similarity}
	}
	return out, nil
}

// Remove deletes the document with id. Unknown ids are a no-op.
func (c *Chromem) Remove(ctx context.Context, id string) error {
	if err := c.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (c *Chromem) Count() int {
	return c.collection.Count()
}
