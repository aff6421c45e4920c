package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// cropMargin widens the detection box on each side so the crop keeps
	// some context around the face. Relative to box width/height.
	cropMargin = 0.2

	// maxCropSide is the longest side of the crop sent to the embedding
	// service. Larger crops are downscaled.
	maxCropSide = 256

	cropJPEGQuality = 90
)

// CropFace cuts a detection's bounding box out of the source image, widens it
// by a margin, downscales it when needed and re-encodes it as JPEG. The
// bounding box is normalized [x1, y1, x2, y2].
func CropFace(imageData []byte, bbox []float64) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("invalid bounding box: expected 4 values, got %d", len(bbox))
	}

	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	mx := (bbox[2] - bbox[0]) * cropMargin
	my := (bbox[3] - bbox[1]) * cropMargin

	x1 := int((bbox[0] - mx) * w)
	y1 := int((bbox[1] - my) * h)
	x2 := int((bbox[2] + mx) * w)
	y2 := int((bbox[3] + my) * h)

	rect := image.Rect(x1, y1, x2, y2).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %v is outside the image", bbox)
	}

	// Downscale so the longest side is at most maxCropSide.
	dw, dh := rect.Dx(), rect.Dy()
	if dw > maxCropSide || dh > maxCropSide {
		if dw >= dh {
			dh = dh * maxCropSide / dw
			dw = maxCropSide
		} else {
			dw = dw * maxCropSide / dh
			dh = maxCropSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, rect, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: cropJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
