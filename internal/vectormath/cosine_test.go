package vectormath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineIdentical(t *testing.T) {
	v := []float64{0.3, -1.2, 4.5, 0.01}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosineSymmetric(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-2, 0.5, 7}
	assert.InDelta(t, Cosine(a, b), Cosine(b, a), 1e-12)
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.InDelta(t, 0.5, Cosine(a, b), 1e-9)
}

func TestCosineOpposite(t *testing.T) {
	a := []float64{1, 1}
	b := []float64{-1, -1}
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
}

func TestCosineDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
	}{
		{"nil a", nil, []float64{1, 2}},
		{"nil b", []float64{1, 2}, nil},
		{"both nil", nil, nil},
		{"empty", []float64{}, []float64{}},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}},
		{"zero norm a", []float64{0, 0}, []float64{1, 1}},
		{"zero norm b", []float64{1, 1}, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, float64(0), Cosine(tt.a, tt.b))
		})
	}
}

func TestCosineRange(t *testing.T) {
	vectors := [][]float64{
		{1, 0, 0},
		{-1, 2, -3},
		{0.001, 0.002, -0.003},
		{100, -100, 50},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			score := Cosine(a, b)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestSignBucket(t *testing.T) {
	assert.Equal(t, "10", SignBucket([]float64{0.5, -0.5}, 2))
	assert.Equal(t, "11", SignBucket([]float64{0, 1}, 2))
	assert.Equal(t, "", SignBucket(nil, 4))
	// dims capped at vector length
	assert.Equal(t, "101", SignBucket([]float64{1, -1, 1}, 8))
}

func TestSignBucketSharedByNeighbors(t *testing.T) {
	a := []float64{0.9, -0.2, 0.4, -0.7}
	b := []float64{0.8, -0.1, 0.5, -0.6}
	assert.Equal(t, SignBucket(a, 4), SignBucket(b, 4))
}
