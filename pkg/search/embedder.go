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
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDimensions is the feature-hash embedding width.
const DefaultDimensions = 256

// Embedder turns text into a fixed-width vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HashEmbedder is a deterministic, offline embedder: unigram and bigram
// tokens hash into a fixed number of buckets, L2 normalized. It needs
// no API key and produces identical vectors across runs, which keeps
// action routing stable between restarts. Quality is adequate for the
// small corpora here (action descriptions, task documents); swap in a
// remote embedder through the Embedder interface if recall matters
// more than determinism.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates an embedder with dims buckets (default 256).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions returns the vector width.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed hashes tokens into buckets and normalizes. Empty or
// token-free text yields the zero vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	toks := embedTokens(text)
	for i, tok := range toks {
		vec[h.bucket(tok)]++
		if i+1 < len(toks) {
			vec[h.bucket(toks[i]+" "+toks[i+1])]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (h *HashEmbedder) bucket(tok string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(tok))
	return int(f.Sum32() % uint32(h.dims))
}

func embedTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		default:
			return true
		}
	})
}
