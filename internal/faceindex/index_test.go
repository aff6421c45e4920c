package faceindex

import (
	"path/filepath"
	"testing"
	"time"
)

func TestPersistenceRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faceindex.json")
	cfg := Config{StorePath: path, Debounce: time.Minute}

	idx := newTestIndex(t, cfg)
	a := idx.MatchOrCreate(printAtAngle(0))
	b := idx.MatchOrCreate(printAtAngle(90))
	idx.SetManualLabel(a.FaceID, "Alice")
	idx.SetContactLabel(b.FaceID, "contact-1", "Bob", true)
	idx.AssignFaces("img.jpg", []string{a.FaceID, b.FaceID})
	idx.MarkAssetProcessed("img.jpg", 2)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestIndex(t, cfg)
	if reopened.Count() != 2 {
		t.Fatalf("Count = %d after reload, want 2", reopened.Count())
	}

	ca, ok := reopened.Cluster(a.FaceID)
	if !ok || ca.DisplayName != "Alice" || ca.LabelSource != LabelManual {
		t.Errorf("cluster A = %+v", ca)
	}
	cb, ok := reopened.Cluster(b.FaceID)
	if !ok || cb.LinkedContactID != "contact-1" {
		t.Errorf("cluster B = %+v", cb)
	}
	if len(ca.ReferencePrints) != 1 {
		t.Errorf("cluster A prints = %d, want 1", len(ca.ReferencePrints))
	}

	if faces := reopened.FacesForAsset("img.jpg"); len(faces) != 2 {
		t.Errorf("asset faces = %v", faces)
	}
	if reopened.NeedsProcessing("img.jpg") {
		t.Error("processed state lost across reload")
	}

	// Face ID sequence continues, never reuses.
	c := reopened.MatchOrCreate(printAtAngle(180))
	if c.FaceID == a.FaceID || c.FaceID == b.FaceID {
		t.Errorf("reused face ID %s", c.FaceID)
	}
}

func TestLeafClustersCapped(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))
	for i := 1; i < 5; i++ {
		idx.MatchOrCreate(printAtAngle(float64(i)))
	}

	leaves := idx.LeafClusters(2)
	if len(leaves) != 1 {
		t.Fatalf("got %d leaves, want 1", len(leaves))
	}
	if leaves[0].FaceID != a.FaceID {
		t.Errorf("leaf = %s, want %s", leaves[0].FaceID, a.FaceID)
	}
	if len(leaves[0].Prints) != 2 {
		t.Errorf("leaf prints = %d, want 2 (capped)", len(leaves[0].Prints))
	}
}

func TestLeafClusterSignature(t *testing.T) {
	idx := newTestIndex(t, Config{})

	count, used := idx.LeafClusterSignature(4)
	if count != 0 || used != 0 {
		t.Errorf("empty signature = (%d, %d)", count, used)
	}

	idx.MatchOrCreate(printAtAngle(0))
	idx.MatchOrCreate(printAtAngle(90))

	count, used = idx.LeafClusterSignature(4)
	if count != 2 || used != 2 {
		t.Errorf("signature = (%d, %d), want (2, 2)", count, used)
	}

	// Growing a reference set changes the signature.
	idx.MatchOrCreate(printAtAngle(10))
	_, used2 := idx.LeafClusterSignature(4)
	if used2 != used+1 {
		t.Errorf("used prints = %d, want %d", used2, used+1)
	}
}
