package faceindex

import (
	"reflect"
	"testing"
)

func TestAssignFacesSetSemantics(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))
	b := idx.MatchOrCreate(printAtAngle(90))

	idx.AssignFaces("asset-1", []string{b.FaceID, a.FaceID, b.FaceID, "face-999999", ""})

	got := idx.FacesForAsset("asset-1")
	want := []string{a.FaceID, b.FaceID}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("faces = %v, want %v", got, want)
	}
}

func TestAssignFacesEmptyRemovesMapping(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	idx.AssignFaces("asset-1", []string{a.FaceID})
	idx.AssignFaces("asset-1", nil)

	if faces := idx.FacesForAsset("asset-1"); len(faces) != 0 {
		t.Errorf("faces = %v, want empty", faces)
	}
	if assets := idx.AssetsForFace(a.FaceID); len(assets) != 0 {
		t.Errorf("assets = %v, want empty", assets)
	}
}

func TestAssetsForFaceSorted(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	idx.AssignFaces("zebra.jpg", []string{a.FaceID})
	idx.AssignFaces("apple.jpg", []string{a.FaceID})
	idx.AssignFaces("mango.jpg", []string{a.FaceID})

	got := idx.AssetsForFace(a.FaceID)
	want := []string{"apple.jpg", "mango.jpg", "zebra.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("assets = %v, want %v", got, want)
	}
}

func TestAssetProcessingState(t *testing.T) {
	idx := newTestIndex(t, Config{})

	if !idx.NeedsProcessing("img.jpg") {
		t.Error("unseen asset should need processing")
	}

	idx.MarkAssetFailed("img.jpg")
	if !idx.NeedsProcessing("img.jpg") {
		t.Error("failed asset should need processing")
	}
	rec, ok := idx.AssetState("img.jpg")
	if !ok || rec.State != AssetFailed {
		t.Errorf("state = %+v, want failed", rec)
	}

	idx.MarkAssetProcessed("img.jpg", 2)
	if idx.NeedsProcessing("img.jpg") {
		t.Error("processed asset should not need processing")
	}
	rec, _ = idx.AssetState("img.jpg")
	if rec.State != AssetProcessed || rec.FaceCount != 2 {
		t.Errorf("state = %+v, want processed with 2 faces", rec)
	}
	if rec.AttemptedAt.IsZero() {
		t.Error("attempt timestamp is zero")
	}
}

func TestRemoveAsset(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	idx.AssignFaces("img.jpg", []string{a.FaceID})
	idx.MarkAssetProcessed("img.jpg", 1)
	idx.RemoveAsset("img.jpg")

	if faces := idx.FacesForAsset("img.jpg"); len(faces) != 0 {
		t.Errorf("faces = %v after removal", faces)
	}
	if _, ok := idx.AssetState("img.jpg"); ok {
		t.Error("asset state survived removal")
	}
	if !idx.NeedsProcessing("img.jpg") {
		t.Error("removed asset should need processing again")
	}
}
