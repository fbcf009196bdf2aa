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
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TaskDocumentDir is the corpus subdirectory under the data dir.
const TaskDocumentDir = "task_document"

// TaskDocument is one few-shot exemplar: a named, worked task. On disk
// it is a .txt file whose first line is the name and the rest the body.
type TaskDocument struct {
	ID   string
	Name string
	Body string
}

// IndexText is what the vector index sees for this document.
func (d TaskDocument) IndexText() string {
	return d.Name + "\n\n" + d.Body
}

// LoadTaskDocuments reads every .txt file under dir, sorted by id. A
// missing dir is an empty corpus.
func LoadTaskDocuments(dir string) ([]TaskDocument, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task documents: %w", err)
	}

	var docs []TaskDocument
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read task document %s: %w", e.Name(), err)
		}
		id := strings.TrimSuffix(e.Name(), ".txt")
		name, body, _ := strings.Cut(string(raw), "\n")
		docs = append(docs, TaskDocument{
			ID:   id,
			Name: strings.TrimSpace(name),
			Body: strings.TrimSpace(body),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// SaveTaskDocument writes doc under dir, creating the dir if needed.
func SaveTaskDocument(dir string, doc TaskDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("task document id is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create task document dir: %w", err)
	}
	content := doc.Name + "\n" + doc.Body
	path := filepath.Join(dir, doc.ID+".txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write task document: %w", err)
	}
	return nil
}
