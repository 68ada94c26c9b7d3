package memory

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")
	ErrZeroNorm          = goerr.New("embedding has zero norm")
)

// CosineSimilarity computes the cosine of the angle between two embedding
// vectors, in [-1, 1]. Vectors of different length violate the scorer
// contract and return ErrDimensionMismatch. A zero-norm vector returns
// ErrZeroNorm: no similarity is computable, which is not the same as a
// similarity of 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.Wrap(ErrDimensionMismatch, "vectors must have equal length",
			goerr.V("len_a", len(a)), goerr.V("len_b", len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, goerr.Wrap(ErrZeroNorm, "cosine similarity is undefined for zero vectors")
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
