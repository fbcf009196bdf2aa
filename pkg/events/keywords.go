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
package events

import (
	"math"
	"sort"
	"strings"
)

// maxTokenLen drops base64 blobs and hashes from keyword candidates.
const maxTokenLen = 32

// ExtractKeywords ranks unigram and bigram terms of text by TF-IDF and
// returns the top n, highest score first. Each non-blank line counts as
// one document for the IDF side, so terms spread across the whole text
// rank below terms concentrated in a few lines. Returns an empty list
// when the text has no usable tokens.
func ExtractKeywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}

	var docs [][]string
	for _, line := range strings.Split(text, "\n") {
		toks := tokenize(line)
		if len(toks) == 0 {
			continue
		}
		terms := make([]string, 0, len(toks)*2)
		terms = append(terms, toks...)
		for i := 0; i+1 < len(toks); i++ {
			terms = append(terms, toks[i]+" "+toks[i+1])
		}
		docs = append(docs, terms)
	}
	if len(docs) == 0 {
		return nil
	}

	tf := make(map[string]int)
	df := make(map[string]int)
	total := 0
	for _, terms := range docs {
		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			tf[term]++
			total++
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	type scored struct {
		term  string
		score float64
	}
	ranked := make([]scored, 0, len(tf))
	for term, count := range tf {
		idf := math.Log(1 + float64(len(docs))/float64(1+df[term]))
		ranked = append(ranked, scored{term, float64(count) / float64(total) * idf})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = ranked[i].term
	}
	return out
}

// tokenize lowercases and splits on anything that is not a letter or
// digit, discarding empties and oversized tokens.
func tokenize(line string) []string {
	fields := strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= '0' && r <= '9' {
			return false
		}
		return true
	})
	toks := fields[:0]
	for _, f := range fields {
		if f == "" || len(f) > maxTokenLen {
			continue
		}
		toks = append(toks, f)
	}
	return toks
}
