// Package testutil provides shared testing doubles and infrastructure
// for the verdin project, following the pattern of standard library
// packages like net/http/httptest.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, network-free Embedder double. Each
// text is tokenized and its tokens hashed into a fixed number of
// buckets; the bucket counts are L2-normalized. Texts sharing tokens
// therefore score higher cosine similarity than unrelated texts, which
// makes retrieval tests meaningful without a real model.
type HashEmbedder struct {
	Dims int
}

// NewHashEmbedder returns an embedder producing vectors of dims length.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{Dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vector(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.Dims)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%e.Dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Empty text embeds as a constant unit vector.
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// FailingEmbedder always returns Err, for exercising failure paths.
type FailingEmbedder struct {
	Err error
}

func (f *FailingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, f.Err
}
