package embedding

import (
	"context"
	"math"
	"testing"
)

func TestHashModelIsDeterministic(t *testing.T) {
	m := NewHashModel(32)
	ctx := context.Background()

	first, err := m.EncodeBatch(ctx, []string{"hello world"})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	second, err := m.EncodeBatch(ctx, []string{"hello world"})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}

	if len(first[0]) != 32 {
		t.Fatalf("expected 32 dims, got %d", len(first[0]))
	}
	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("encoding not deterministic at index %d: %v != %v", i, first[0][i], second[0][i])
		}
	}
}

func TestHashModelDistinctTextsDiffer(t *testing.T) {
	m := NewHashModel(16)
	vecs, err := m.EncodeBatch(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if vecs[0][0] == vecs[1][0] && vecs[0][1] == vecs[1][1] {
		t.Fatalf("expected distinct texts to produce distinct vectors")
	}
}

func TestHashModelVectorsAreUnitNorm(t *testing.T) {
	m := NewHashModel(8)
	vecs, err := m.EncodeBatch(context.Background(), []string{"unit norm check"})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	var sumSq float64
	for _, v := range vecs[0] {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-6 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestHashModelDefaultsDims(t *testing.T) {
	m := NewHashModel(0)
	if m.dims != 64 {
		t.Fatalf("expected default dims 64, got %d", m.dims)
	}
}
