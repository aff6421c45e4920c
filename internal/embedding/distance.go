package embedding

import (
	"errors"
	"math"
)

// ErrIncomparable is returned when two prints cannot be compared, typically
// because one of them is malformed or a zero vector.
var ErrIncomparable = errors.New("prints are not comparable")

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
// Cosine distance = 1 - cosine similarity.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, ErrIncomparable
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, ErrIncomparable
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity, nil
}

// Distance decodes both prints and computes their cosine distance.
// A decode failure on either side yields ErrIncomparable semantics: the
// caller skips the pair rather than aborting the enclosing loop.
func Distance(a, b Print) (float64, error) {
	va, err := Decode(a)
	if err != nil {
		return 0, err
	}
	vb, err := Decode(b)
	if err != nil {
		return 0, err
	}
	return CosineDistance(va, vb)
}
