// Package embedding defines the face print format and the boundary to the
// external face detection and embedding capability. The engine never computes
// vision features itself; it consumes (print, distance) pairs from a Provider.
package embedding

import (
	"context"
	"errors"
)

// ErrNoEmbedding is returned by Embed when the underlying capability produced
// no feature vector for the given image.
var ErrNoEmbedding = errors.New("no embedding produced")

// Detection describes one face found in an image. The bounding box is
// normalized to the image dimensions: [x1, y1, x2, y2] with values in [0, 1].
type Detection struct {
	BBox  []float64 `json:"bbox"`
	Score float64   `json:"det_score"`
}

// Area returns the normalized area of the detection's bounding box.
func (d Detection) Area() float64 {
	if len(d.BBox) != 4 {
		return 0
	}
	w := d.BBox[2] - d.BBox[0]
	h := d.BBox[3] - d.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Provider is the external face capability: detect faces in an image and
// embed a cropped face into a print.
type Provider interface {
	// DetectFaces returns zero or more face detections for an image.
	DetectFaces(ctx context.Context, imageData []byte) ([]Detection, error)
	// Embed computes the feature print for a cropped face image.
	// Returns ErrNoEmbedding when the capability yields nothing.
	Embed(ctx context.Context, faceData []byte) (Print, error)
}
