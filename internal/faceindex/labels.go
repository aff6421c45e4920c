package faceindex

import (
	"strings"
	"time"
)

// SetManualLabel names a cluster by explicit user action. Manual labels
// always win and clear any contact link. Blank inputs are a no-op.
func (idx *Index) SetManualLabel(faceID, displayName string) bool {
	faceID = strings.TrimSpace(faceID)
	displayName = strings.TrimSpace(displayName)
	if faceID == "" || displayName == "" {
		return false
	}

	idx.mu.Lock()
	c, ok := idx.clusters[faceID]
	if ok {
		c.DisplayName = displayName
		c.LabelSource = LabelManual
		c.LinkedContactID = ""
		c.UpdatedAt = time.Now().UTC()
	}
	idx.mu.Unlock()

	if ok {
		idx.markDirty()
	}
	return ok
}

// ClearLabel resets a cluster to the unlabeled state.
func (idx *Index) ClearLabel(faceID string) bool {
	idx.mu.Lock()
	c, ok := idx.clusters[faceID]
	if ok {
		c.DisplayName = ""
		c.LabelSource = LabelNone
		c.LinkedContactID = ""
		c.UpdatedAt = time.Now().UTC()
	}
	idx.mu.Unlock()

	if ok {
		idx.markDirty()
	}
	return ok
}

// SetContactLabel applies a contact-derived label to a cluster. It never
// overwrites a manual label. With renameOnlyIfUnlabeled it also refuses to
// overwrite a different contact's label, but re-applying the same contact is
// idempotent and refreshes the display name.
func (idx *Index) SetContactLabel(faceID, contactID, displayName string, renameOnlyIfUnlabeled bool) bool {
	faceID = strings.TrimSpace(faceID)
	contactID = strings.TrimSpace(contactID)
	displayName = strings.TrimSpace(displayName)
	if faceID == "" || contactID == "" || displayName == "" {
		return false
	}

	idx.mu.Lock()
	applied := false
	if c, ok := idx.clusters[faceID]; ok {
		switch {
		case c.LabelSource == LabelManual && c.DisplayName != "":
			// Manual labels dominate contact labels.
		case renameOnlyIfUnlabeled && c.LabelSource == LabelContact && c.LinkedContactID != contactID:
			// A different contact already owns this cluster.
		default:
			c.DisplayName = displayName
			c.LabelSource = LabelContact
			c.LinkedContactID = contactID
			c.UpdatedAt = time.Now().UTC()
			applied = true
		}
	}
	idx.mu.Unlock()

	if applied {
		idx.markDirty()
	}
	return applied
}
