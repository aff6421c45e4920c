package contacts

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/faceindex"
)

// fakeProvider returns canned detections and embeds every crop to the same
// print. An empty detections slice simulates a photo without a face.
type fakeProvider struct {
	detections []embedding.Detection
	print      embedding.Print
	detectErr  error
}

func (f *fakeProvider) DetectFaces(ctx context.Context, imageData []byte) ([]embedding.Detection, error) {
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.detections, nil
}

func (f *fakeProvider) Embed(ctx context.Context, faceData []byte) (embedding.Print, error) {
	return f.print, nil
}

// testPhoto renders a small JPEG the cropper can decode.
func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 140, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test photo: %v", err)
	}
	return buf.Bytes()
}

func newLabelerFixture(t *testing.T, provider embedding.Provider) (*Labeler, *faceindex.Index, string) {
	t.Helper()
	idx, err := faceindex.New(faceindex.Config{})
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	res := idx.MatchOrCreate(embedding.Encode([]float32{1, 0}))
	return NewLabeler(provider, idx, 0), idx, res.FaceID
}

func TestSyncLabelsMatchingCluster(t *testing.T) {
	provider := &fakeProvider{
		detections: []embedding.Detection{{BBox: []float64{0.2, 0.2, 0.8, 0.8}, Score: 0.9}},
		print:      embedding.Encode([]float32{1, 0}),
	}
	labeler, idx, faceID := newLabelerFixture(t, provider)

	sum, err := labeler.Sync(context.Background(), []Contact{
		{ID: "contact-1", DisplayName: "Alice", Photo: testPhoto(t)},
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if sum.Labeled != 1 {
		t.Errorf("summary = %+v, want 1 labeled", sum)
	}

	c, _ := idx.Cluster(faceID)
	if c.DisplayName != "Alice" || c.LabelSource != faceindex.LabelContact || c.LinkedContactID != "contact-1" {
		t.Errorf("cluster = %+v", c)
	}
}

func TestSyncSkipsIncompleteAndDuplicates(t *testing.T) {
	provider := &fakeProvider{
		detections: []embedding.Detection{{BBox: []float64{0.2, 0.2, 0.8, 0.8}, Score: 0.9}},
		print:      embedding.Encode([]float32{1, 0}),
	}
	labeler, _, _ := newLabelerFixture(t, provider)

	photo := testPhoto(t)
	sum, err := labeler.Sync(context.Background(), []Contact{
		{ID: "", DisplayName: "No ID", Photo: photo},
		{ID: "contact-1", DisplayName: "", Photo: photo},
		{ID: "contact-2", DisplayName: "No Photo"},
		{ID: "contact-3", DisplayName: "Jiří Novák", Photo: photo},
		// Same name after normalization: processed once.
		{ID: "contact-4", DisplayName: "jiri novak", Photo: photo},
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if sum.Skipped != 4 {
		t.Errorf("summary = %+v, want 4 skipped", sum)
	}
	if sum.Labeled != 1 {
		t.Errorf("summary = %+v, want 1 labeled", sum)
	}
}

func TestSyncNoFaceInPhoto(t *testing.T) {
	provider := &fakeProvider{print: embedding.Encode([]float32{1, 0})}
	labeler, _, _ := newLabelerFixture(t, provider)

	sum, err := labeler.Sync(context.Background(), []Contact{
		{ID: "contact-1", DisplayName: "Alice", Photo: testPhoto(t)},
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if sum.NoMatch != 1 {
		t.Errorf("summary = %+v, want 1 no-match", sum)
	}
}

func TestSyncTooFarIsNoMatch(t *testing.T) {
	provider := &fakeProvider{
		detections: []embedding.Detection{{BBox: []float64{0.2, 0.2, 0.8, 0.8}, Score: 0.9}},
		// Orthogonal to the only cluster: distance 1, beyond any bound.
		print: embedding.Encode([]float32{0, 1}),
	}
	labeler, idx, faceID := newLabelerFixture(t, provider)

	sum, err := labeler.Sync(context.Background(), []Contact{
		{ID: "contact-1", DisplayName: "Alice", Photo: testPhoto(t)},
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if sum.NoMatch != 1 {
		t.Errorf("summary = %+v, want 1 no-match", sum)
	}
	c, _ := idx.Cluster(faceID)
	if c.DisplayName != "" {
		t.Errorf("cluster labeled despite distance: %+v", c)
	}
}

func TestSyncDetectionFailureCounted(t *testing.T) {
	provider := &fakeProvider{detectErr: errors.New("service down")}
	labeler, _, _ := newLabelerFixture(t, provider)

	sum, err := labeler.Sync(context.Background(), []Contact{
		{ID: "contact-1", DisplayName: "Alice", Photo: testPhoto(t)},
	})
	if err != nil {
		t.Fatalf("Sync should not abort on per-contact failure: %v", err)
	}
	if sum.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", sum)
	}
}

func TestSyncNeverOverwritesManual(t *testing.T) {
	provider := &fakeProvider{
		detections: []embedding.Detection{{BBox: []float64{0.2, 0.2, 0.8, 0.8}, Score: 0.9}},
		print:      embedding.Encode([]float32{1, 0}),
	}
	labeler, idx, faceID := newLabelerFixture(t, provider)
	idx.SetManualLabel(faceID, "My Name")

	sum, err := labeler.Sync(context.Background(), []Contact{
		{ID: "contact-1", DisplayName: "Alice", Photo: testPhoto(t)},
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if sum.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 skipped", sum)
	}
	c, _ := idx.Cluster(faceID)
	if c.DisplayName != "My Name" || c.LabelSource != faceindex.LabelManual {
		t.Errorf("manual label overwritten: %+v", c)
	}
}

func TestSyncCancellation(t *testing.T) {
	provider := &fakeProvider{}
	labeler, _, _ := newLabelerFixture(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := labeler.Sync(ctx, []Contact{{ID: "c", DisplayName: "N", Photo: testPhoto(t)}}); err == nil {
		t.Error("expected cancellation error")
	}
}
