package memory

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimensions matches the all-MiniLM-L6-v2 output size.
const DefaultHashDimensions = 384

// HashEmbedder is an offline feature-hashing embedder. Each lower-cased word
// and word bigram is hashed into a bucket with a signed weight, so texts that
// share vocabulary land close together.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder; non-positive dims use the default.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dims}
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for i, word := range words {
		e.add(vec, word, 1)
		if i > 0 {
			e.add(vec, words[i-1]+" "+word, 0.5)
		}
	}
	// Texts without words (or whose hashes cancel out) still need a direction.
	if isZeroVector(vec) {
		e.add(vec, "\x00"+text, 1)
	}
	return normalize(vec), nil
}

func (e *HashEmbedder) add(vec []float32, token string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
