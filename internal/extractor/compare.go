package extractor

import (
	"math"

	"github.com/andresmejia3/faceid/internal/types"
)

// Euclidean implements face_recognition's comparison rules: the distance is
// the L2 norm of the difference, and a face matches when its distance is at
// most Tolerance.
type Euclidean struct {
	Tolerance float64
}

// FaceDistance returns the distance from probe to every known embedding, in order.
func (e Euclidean) FaceDistance(known []types.Embedding, probe types.Embedding) []float64 {
	distances := make([]float64, len(known))
	for i, k := range known {
		distances[i] = Distance(k, probe)
	}
	return distances
}

// CompareFaces reports, per known embedding, whether the probe is within tolerance.
func (e Euclidean) CompareFaces(known []types.Embedding, probe types.Embedding) []bool {
	tolerance := e.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	matches := make([]bool, len(known))
	for i, d := range e.FaceDistance(known, probe) {
		matches[i] = d <= tolerance
	}
	return matches
}

// Distance is the Euclidean distance between two embeddings. Embeddings of
// different lengths are maximally distant.
func Distance(a, b types.Embedding) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
