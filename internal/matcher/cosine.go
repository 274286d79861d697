package matcher

import "math"

// CosineSimilarity returns dot(a,b) / (|a|·|b|). A zero-magnitude vector has
// similarity 0 with everything. Callers must pass equal-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push identical vectors just past 1.
	return max(-1, min(1, sim))
}
