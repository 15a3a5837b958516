package ml

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"IntelVault/internal/ports"
)

// HashEmbedder is an offline bag-of-words embedder: every lowercased token
// is hashed into one of dim buckets and the result is L2-normalised. It
// keeps dry runs and tests deterministic without a network.
type HashEmbedder struct {
	dim int
}

var _ ports.Embedder = HashEmbedder{}

// NewHashEmbedder defaults to 256 dimensions.
func NewHashEmbedder(dim int) HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return HashEmbedder{dim: dim}
}

// Embed never fails.
func (h HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[f.Sum32()%uint32(h.dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
