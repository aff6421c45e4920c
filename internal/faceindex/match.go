package faceindex

import (
	"sort"
	"time"

	"github.com/photokit/facetree/internal/embedding"
)

// MatchResult is the outcome of MatchOrCreate.
type MatchResult struct {
	FaceID string
	// Distance is nil when a new cluster was created without comparison
	// (empty or undecodable input, or nothing to compare against).
	Distance *float64
	Created  bool
}

// candidate pairs a cluster with its minimum distance to the incoming print.
type candidate struct {
	faceID string
	dist   float64
}

// MatchOrCreate matches an incoming face print against the existing clusters
// and either links it to the best cluster or creates a new one.
//
// A distance at or below the similarity threshold is a strong match and the
// print joins the cluster's reference set (bounded). A distance between the
// similarity and link thresholds links the print without growing the set,
// unless the cluster is still learning. A distance above the link threshold
// always creates a new cluster. After a link, up to MaxMergesPerUpdate
// next-best clusters that are linkable both to the incoming print and to the
// best cluster are absorbed into it, so near-duplicate clusters do not
// proliferate.
func (idx *Index) MatchOrCreate(print embedding.Print) MatchResult {
	idx.mu.Lock()
	res := idx.matchOrCreateLocked(print)
	idx.mu.Unlock()

	idx.markDirty()
	return res
}

func (idx *Index) matchOrCreateLocked(print embedding.Print) MatchResult {
	// An empty print cannot be compared; it always seeds a fresh cluster.
	if print.IsEmpty() {
		c := idx.newClusterLocked(print)
		return MatchResult{FaceID: c.FaceID, Created: true}
	}

	vec, err := embedding.Decode(print)
	if err != nil {
		c := idx.newClusterLocked(print)
		return MatchResult{FaceID: c.FaceID, Created: true}
	}

	candidates := idx.candidatesLocked(vec)
	if len(candidates) == 0 {
		c := idx.newClusterLocked(print)
		return MatchResult{FaceID: c.FaceID, Created: true}
	}

	best := candidates[0]
	if best.dist > idx.cfg.LinkThreshold {
		c := idx.newClusterLocked(print)
		return MatchResult{FaceID: c.FaceID, Created: true}
	}

	target := idx.clusters[best.faceID]
	strong := best.dist <= idx.cfg.SimilarityThreshold
	learning := len(target.ReferencePrints) < idx.cfg.bootstrapCap()
	if (strong || learning) && len(target.ReferencePrints) < idx.cfg.MaxReferencePrints {
		target.ReferencePrints = append(target.ReferencePrints, print)
		if idx.ann != nil {
			idx.ann.addPrints(target.FaceID, []embedding.Print{print})
		}
	}
	target.UpdatedAt = time.Now().UTC()

	// Opportunistic merge pass over the next-best candidates.
	merges := 0
	for _, cand := range candidates[1:] {
		if merges >= idx.cfg.MaxMergesPerUpdate {
			break
		}
		if cand.dist > idx.cfg.LinkThreshold {
			break // candidates are sorted ascending
		}
		d, ok := clusterMinDistance(idx.clusters[cand.faceID], target)
		if !ok || d > idx.cfg.LinkThreshold {
			continue
		}
		idx.mergeLocked(cand.faceID, target.FaceID)
		merges++
	}

	dist := best.dist
	return MatchResult{FaceID: target.FaceID, Distance: &dist}
}

// NearestMatch is a pure nearest-neighbor lookup across all clusters. It
// never mutates the index. Returns ok=false when the input is empty or no
// cluster has a decodable reference.
func (idx *Index) NearestMatch(print embedding.Print) (string, float64, bool) {
	if print.IsEmpty() {
		return "", 0, false
	}
	vec, err := embedding.Decode(print)
	if err != nil {
		return "", 0, false
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	candidates := idx.candidatesLocked(vec)
	if len(candidates) == 0 {
		return "", 0, false
	}
	return candidates[0].faceID, candidates[0].dist, true
}

// candidatesLocked computes the minimum distance from vec to every cluster,
// skipping reference prints that fail to decode, and returns the clusters
// sorted by ascending distance (face ID breaks ties). When the ANN shortlist
// is enabled only the shortlisted clusters are scanned; distances are always
// confirmed exactly.
func (idx *Index) candidatesLocked(vec []float32) []candidate {
	scan := idx.order
	if idx.ann != nil {
		if short := idx.ann.shortlist(vec, idx.clusters); short != nil {
			scan = short
		}
	}

	candidates := make([]candidate, 0, len(scan))
	for _, id := range scan {
		c, ok := idx.clusters[id]
		if !ok {
			continue
		}
		if d, ok := minDistanceToCluster(vec, c); ok {
			candidates = append(candidates, candidate{faceID: id, dist: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].faceID < candidates[j].faceID
	})
	return candidates
}

// minDistanceToCluster returns the minimum distance between vec and the
// cluster's decodable reference prints.
func minDistanceToCluster(vec []float32, c *Cluster) (float64, bool) {
	best := 0.0
	found := false
	for _, ref := range c.ReferencePrints {
		rv, err := embedding.Decode(ref)
		if err != nil {
			continue // undecodable reference is absent, not fatal
		}
		d, err := embedding.CosineDistance(vec, rv)
		if err != nil {
			continue
		}
		if !found || d < best {
			best = d
			found = true
		}
	}
	return best, found
}

// clusterMinDistance returns the minimum distance over all decodable
// reference print pairs of two clusters.
func clusterMinDistance(a, b *Cluster) (float64, bool) {
	best := 0.0
	found := false
	for _, pa := range a.ReferencePrints {
		va, err := embedding.Decode(pa)
		if err != nil {
			continue
		}
		for _, pb := range b.ReferencePrints {
			vb, err := embedding.Decode(pb)
			if err != nil {
				continue
			}
			d, err := embedding.CosineDistance(va, vb)
			if err != nil {
				continue
			}
			if !found || d < best {
				best = d
				found = true
			}
		}
	}
	return best, found
}

// Merge absorbs the source cluster into the target. Labels resolve by
// precedence (manual > contact > none, target wins ties), reference prints
// union up to the cap, and every asset mapping referencing the source is
// rewritten to the target. The source cluster is destroyed. Atomic from the
// caller's perspective.
func (idx *Index) Merge(sourceID, targetID string) bool {
	idx.mu.Lock()
	ok := idx.canMergeLocked(sourceID, targetID)
	if ok {
		idx.mergeLocked(sourceID, targetID)
	}
	idx.mu.Unlock()

	if ok {
		idx.markDirty()
	}
	return ok
}

func (idx *Index) canMergeLocked(sourceID, targetID string) bool {
	if sourceID == targetID {
		return false
	}
	_, okS := idx.clusters[sourceID]
	_, okT := idx.clusters[targetID]
	return okS && okT
}

func (idx *Index) mergeLocked(sourceID, targetID string) {
	source := idx.clusters[sourceID]
	target := idx.clusters[targetID]

	// Adopt the source's label only when the target's is weaker.
	if source.LabelSource.rank() > target.LabelSource.rank() {
		target.DisplayName = source.DisplayName
		target.LabelSource = source.LabelSource
		target.LinkedContactID = source.LinkedContactID
	}

	// Union reference prints up to the cap, deduplicated by raw bytes.
	for _, p := range source.ReferencePrints {
		if len(target.ReferencePrints) >= idx.cfg.MaxReferencePrints {
			break
		}
		dup := false
		for _, q := range target.ReferencePrints {
			if embedding.Equal(p, q) {
				dup = true
				break
			}
		}
		if !dup {
			target.ReferencePrints = append(target.ReferencePrints, p)
		}
	}
	target.UpdatedAt = time.Now().UTC()

	// Rewrite asset mappings synchronously so no mapping keeps pointing at
	// the destroyed cluster.
	for assetID, faces := range idx.assetFaces {
		changed := false
		for i, id := range faces {
			if id == sourceID {
				faces[i] = targetID
				changed = true
			}
		}
		if changed {
			idx.assetFaces[assetID] = sortedUnique(faces)
		}
	}

	if idx.ann != nil {
		idx.ann.removeCluster(sourceID)
		idx.ann.addPrints(targetID, target.ReferencePrints)
	}

	idx.removeClusterLocked(sourceID)
}
