package faceindex

import (
	"sort"
	"strings"
	"time"
)

// AssignFaces records which face identities appear in an asset. The list is
// stored with set semantics: sorted, deduplicated, unknown and blank face IDs
// dropped. An empty result removes the mapping entirely.
func (idx *Index) AssignFaces(assetID string, faceIDs []string) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return
	}

	idx.mu.Lock()
	clean := make([]string, 0, len(faceIDs))
	for _, id := range sortedUnique(faceIDs) {
		if _, ok := idx.clusters[id]; ok {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		delete(idx.assetFaces, assetID)
	} else {
		idx.assetFaces[assetID] = clean
	}
	idx.mu.Unlock()

	idx.markDirty()
}

// FacesForAsset returns the face IDs recorded for an asset.
func (idx *Index) FacesForAsset(assetID string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return append([]string(nil), idx.assetFaces[assetID]...)
}

// AssetsForFace returns all asset IDs whose mapping references the face ID,
// sorted for deterministic output.
func (idx *Index) AssetsForFace(faceID string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []string
	for assetID, faces := range idx.assetFaces {
		for _, id := range faces {
			if id == faceID {
				out = append(out, assetID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// RemoveAsset drops an asset's face mapping and processing record.
func (idx *Index) RemoveAsset(assetID string) {
	idx.mu.Lock()
	delete(idx.assetFaces, assetID)
	delete(idx.assetStates, assetID)
	idx.mu.Unlock()

	idx.markDirty()
}

// MarkAssetProcessed records a successful face processing pass for an asset.
func (idx *Index) MarkAssetProcessed(assetID string, faceCount int) {
	idx.setAssetState(assetID, AssetRecord{
		State:       AssetProcessed,
		FaceCount:   faceCount,
		AttemptedAt: time.Now().UTC(),
	})
}

// MarkAssetFailed records a failed face processing attempt with a timestamp
// so the caller can retry later without reprocessing successes.
func (idx *Index) MarkAssetFailed(assetID string) {
	idx.setAssetState(assetID, AssetRecord{
		State:       AssetFailed,
		AttemptedAt: time.Now().UTC(),
	})
}

func (idx *Index) setAssetState(assetID string, rec AssetRecord) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return
	}

	idx.mu.Lock()
	idx.assetStates[assetID] = rec
	idx.mu.Unlock()

	idx.markDirty()
}

// AssetState returns the processing record for an asset.
func (idx *Index) AssetState(assetID string) (AssetRecord, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.assetStates[assetID]
	return rec, ok
}

// NeedsProcessing reports whether an asset has never been processed or its
// last attempt failed.
func (idx *Index) NeedsProcessing(assetID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.assetStates[assetID]
	return !ok || rec.State == AssetFailed
}
