package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hash is a stateless feature-hashing term-frequency embedder. It needs
// no corpus fitting and no network, which makes it the offline default
// and the test embedder. Texts sharing vocabulary land near each other;
// quality is far below a learned model.
type Hash struct {
	dims int
}

// NewHash creates a hashing embedder. Dimensions default to 4096.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = 4096
	}
	return &Hash{dims: dims}
}

func (h *Hash) Name() string { return "hashing-tf" }

func (h *Hash) Dimensions() int { return h.dims }

// Embed hashes lowercased terms into buckets and L2-normalizes the
// resulting term-frequency vector. Never errors.
func (h *Hash) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *Hash) embedOne(text string) []float32 {
	vec := make([]float32, h.dims)

	for _, term := range tokenize(text) {
		hasher := fnv.New32a()
		hasher.Write([]byte(term))
		vec[hasher.Sum32()%uint32(h.dims)]++
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
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
