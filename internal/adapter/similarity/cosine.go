// Package similarity scores a query vector against stored vectors.
package similarity

import "math"

// Sentinel is the score returned when cosine similarity is undefined, for
// example when either vector has zero magnitude.
const Sentinel = 0.0

// Cosine calculates the cosine similarity between two vectors, in [-1, 1].
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return Sentinel
	}
	return CosineWithNorms(a, b, Norm(a), Norm(b))
}

// CosineWithNorms is Cosine with precomputed magnitudes, so a query norm can
// be computed once per search.
func CosineWithNorms(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return Sentinel
	}
	if normA == 0 || normB == 0 {
		return Sentinel
	}

	s := Dot(a, b) / (normA * normB)
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0):
		return Sentinel
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// Dot accumulates in float64 to keep rounding error off the ranking.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Norm returns the Euclidean magnitude of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Normalize scales v in place to unit length. Zero vectors are left as is.
func Normalize(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}
