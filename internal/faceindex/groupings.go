package faceindex

import (
	"context"
	"sort"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/unionfind"
)

// cancelCheckInterval is how many pairwise comparisons run between
// cooperative cancellation checks.
const cancelCheckInterval = 128

// Grouping is the partition of the requested face IDs at one threshold.
type Grouping struct {
	Threshold float64    `json:"threshold"`
	Groups    [][]string `json:"groups"`
}

// groupEdge is one pairwise cluster distance, by index into the sorted
// face ID slice.
type groupEdge struct {
	i, j int
	dist float64
}

// FaceGroupings partitions a candidate subset of face IDs into single-linkage
// groups at each requested distance threshold. Two clusters link when any
// pair of their reference prints is at or below the threshold; chains through
// intermediate clusters are intentional (loose grouping).
//
// Thresholds are processed in ascending order over a single incrementally
// grown union-find, so pairwise distances are computed exactly once and the
// groups at a higher threshold always nest the groups at a lower one. Groups
// are ordered by descending size, then by the smallest member ID; the whole
// computation is deterministic for identical inputs.
func (idx *Index) FaceGroupings(ctx context.Context, faceIDs []string, thresholds []float64) ([]Grouping, error) {
	ids, prints := idx.groupingSnapshot(faceIDs)

	if len(thresholds) == 0 {
		return nil, nil
	}
	sorted := append([]float64(nil), thresholds...)
	sort.Float64s(sorted)

	vectors := make([][][]float32, len(ids))
	for i := range ids {
		for _, p := range prints[i] {
			v, err := embedding.Decode(p)
			if err != nil {
				continue // skip undecodable reference
			}
			vectors[i] = append(vectors[i], v)
		}
	}

	// Pairwise minimum cluster-to-cluster distances. O(n^2) over the
	// candidate set; checked for cancellation at bounded intervals.
	var edges []groupEdge
	pairs := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			pairs++
			if pairs%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if d, ok := minPairDistance(vectors[i], vectors[j]); ok {
				edges = append(edges, groupEdge{i: i, j: j, dist: d})
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].dist != edges[b].dist {
			return edges[a].dist < edges[b].dist
		}
		if edges[a].i != edges[b].i {
			return edges[a].i < edges[b].i
		}
		return edges[a].j < edges[b].j
	})

	uf := unionfind.New(len(ids))
	out := make([]Grouping, 0, len(sorted))
	next := 0
	for _, t := range sorted {
		for next < len(edges) && edges[next].dist <= t {
			uf.Union(edges[next].i, edges[next].j)
			next++
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, Grouping{Threshold: t, Groups: groupsByID(uf, ids)})
	}
	return out, nil
}

// groupingSnapshot copies the requested clusters' prints under the lock so
// the O(n^2) comparison can run without blocking other operations.
func (idx *Index) groupingSnapshot(faceIDs []string) ([]string, [][]embedding.Print) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := make([]string, 0, len(faceIDs))
	var prints [][]embedding.Print
	for _, id := range sortedUnique(faceIDs) {
		c, ok := idx.clusters[id]
		if !ok {
			continue
		}
		ids = append(ids, id)
		prints = append(prints, append([]embedding.Print(nil), c.ReferencePrints...))
	}
	return ids, prints
}

// minPairDistance returns the minimum distance over all vector pairs.
func minPairDistance(a, b [][]float32) (float64, bool) {
	best := 0.0
	found := false
	for _, va := range a {
		for _, vb := range b {
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

// groupsByID maps union-find groups back to face IDs and applies the output
// ordering: descending size, then ascending smallest member.
func groupsByID(uf *unionfind.UnionFind, ids []string) [][]string {
	raw := uf.Groups()
	groups := make([][]string, 0, len(raw))
	for _, members := range raw {
		g := make([]string, 0, len(members))
		for _, m := range members {
			g = append(g, ids[m])
		}
		sort.Strings(g)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
	return groups
}
