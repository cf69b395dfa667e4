package embedding

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
//
// Returns a value in [-1, 1]. Mismatched lengths, empty vectors, and zero
// vectors all yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0.0 || magB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// CosineDistance converts cosine similarity to a distance in [0, 1],
// where 0 means identical direction. Values outside the range (from
// negative similarity or float error) are clamped.
func CosineDistance(a, b []float32) float64 {
	d := 1.0 - CosineSimilarity(a, b)
	if d < 0.0 {
		return 0.0
	}
	if d > 1.0 {
		return 1.0
	}
	return d
}
