package faceindex

import "testing"

func TestSetManualLabel(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	if !idx.SetManualLabel(a.FaceID, "Alice") {
		t.Fatal("SetManualLabel failed")
	}
	c, _ := idx.Cluster(a.FaceID)
	if c.DisplayName != "Alice" || c.LabelSource != LabelManual {
		t.Errorf("label = %q (%s), want Alice (manual)", c.DisplayName, c.LabelSource)
	}

	if idx.SetManualLabel(a.FaceID, "   ") {
		t.Error("blank name should be rejected")
	}
	if idx.SetManualLabel("face-999999", "Ghost") {
		t.Error("unknown face should be rejected")
	}
}

func TestManualLabelClearsContactLink(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	idx.SetContactLabel(a.FaceID, "contact-1", "Alice", false)
	idx.SetManualLabel(a.FaceID, "Alicia")

	c, _ := idx.Cluster(a.FaceID)
	if c.LinkedContactID != "" {
		t.Errorf("contact link %q should be cleared by manual rename", c.LinkedContactID)
	}
	if c.DisplayName != "Alicia" || c.LabelSource != LabelManual {
		t.Errorf("label = %q (%s), want Alicia (manual)", c.DisplayName, c.LabelSource)
	}
}

func TestContactLabelNeverOverwritesManual(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	idx.SetManualLabel(a.FaceID, "Alice")

	for _, renameOnly := range []bool{true, false} {
		if idx.SetContactLabel(a.FaceID, "contact-1", "Contact Alice", renameOnly) {
			t.Errorf("contact label applied over manual (renameOnlyIfUnlabeled=%v)", renameOnly)
		}
	}
	c, _ := idx.Cluster(a.FaceID)
	if c.DisplayName != "Alice" || c.LabelSource != LabelManual {
		t.Errorf("label = %q (%s), want Alice (manual)", c.DisplayName, c.LabelSource)
	}
}

func TestContactLabelIdempotentReapply(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	if !idx.SetContactLabel(a.FaceID, "contact-1", "Alice", true) {
		t.Fatal("first contact label failed")
	}
	// The same contact may refresh its name.
	if !idx.SetContactLabel(a.FaceID, "contact-1", "Alice Smith", true) {
		t.Error("re-applying the same contact should succeed")
	}
	c, _ := idx.Cluster(a.FaceID)
	if c.DisplayName != "Alice Smith" {
		t.Errorf("name = %q, want Alice Smith", c.DisplayName)
	}

	// A different contact must not steal the cluster in rename-only mode.
	if idx.SetContactLabel(a.FaceID, "contact-2", "Mallory", true) {
		t.Error("different contact applied in rename-only mode")
	}
	// Without rename-only it may.
	if !idx.SetContactLabel(a.FaceID, "contact-2", "Mallory", false) {
		t.Error("forced contact relabel failed")
	}
}

func TestClearLabel(t *testing.T) {
	idx := newTestIndex(t, Config{})
	a := idx.MatchOrCreate(printAtAngle(0))

	idx.SetManualLabel(a.FaceID, "Alice")
	if !idx.ClearLabel(a.FaceID) {
		t.Fatal("ClearLabel failed")
	}

	c, _ := idx.Cluster(a.FaceID)
	if c.DisplayName != "" || c.LabelSource != LabelNone || c.LinkedContactID != "" {
		t.Errorf("cluster not reset: %+v", c)
	}

	// A cleared cluster accepts contact labels again.
	if !idx.SetContactLabel(a.FaceID, "contact-1", "Alice", true) {
		t.Error("contact label after clear failed")
	}
}
