// Package vectormath scores closeness between embedding vectors.
package vectormath

import (
	"gonum.org/v1/gonum/floats"
)

// Cosine returns the cosine similarity of a and b normalized to [0, 1].
// It returns 0 when either vector is nil, empty, zero-norm, or when the
// lengths differ. Symmetric, and Cosine(a, a) == 1 for any non-zero a.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := floats.Dot(a, b) / (normA * normB)

	// Clamp before shifting: accumulated float error can push the raw
	// cosine slightly outside [-1, 1].
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}

	return (cos + 1) / 2
}

// SignBucket reduces an embedding to a coarse signature built from the
// signs of its first dims components. Entries sharing a bucket are likely
// neighbors; the signature describes how stored embeddings cluster but is
// too coarse to bound a similarity search.
func SignBucket(v []float64, dims int) string {
	if len(v) == 0 {
		return ""
	}
	if dims > len(v) {
		dims = len(v)
	}
	sig := make([]byte, dims)
	for i := 0; i < dims; i++ {
		if v[i] >= 0 {
			sig[i] = '1'
		} else {
			sig[i] = '0'
		}
	}
	return string(sig)
}
