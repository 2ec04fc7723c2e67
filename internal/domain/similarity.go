package domain

import "math"

// CosineDistance returns 1 - cos(a, b), in [0, 2]. Zero-norm vectors are
// maximally distant (distance 1, cosine 0).
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// SimilarityFromDistance maps a cosine distance to a normalized 0..1 score,
// higher is more similar. This is the single scoring convention shared by the
// vector and lexical paths; raw distances never cross the orchestrator
// boundary.
func SimilarityFromDistance(d float64) float64 {
	s := (2 - d) / 2
	return math.Max(0, math.Min(1, s))
}

// Similarity returns the normalized 0..1 cosine similarity of two vectors.
func Similarity(a, b []float32) float64 {
	return SimilarityFromDistance(CosineDistance(a, b))
}
