package embedding

import (
	"context"
	"crypto/sha256"
	"math"
)

// HashModel is a deterministic, dependency-free stand-in for a real
// embedding model: every text maps to the same vector across process
// restarts, which is enough to exercise vector search end to end without a
// model endpoint configured. Mirrors the mock-executor pattern used
// elsewhere in the stack when a real backend isn't wired up.
type HashModel struct {
	dims int
}

// NewHashModel builds a HashModel producing unit-norm vectors of the given
// dimensionality.
func NewHashModel(dims int) *HashModel {
	if dims <= 0 {
		dims = 64
	}
	return &HashModel{dims: dims}
}

func (m *HashModel) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.encode(text)
	}
	return out, nil
}

func (m *HashModel) encode(text string) []float32 {
	vec := make([]float32, m.dims)
	block := sha256.Sum256([]byte(text))
	for i := range vec {
		byteVal := block[i%len(block)]
		vec[i] = float32(byteVal)/127.5 - 1
	}
	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
