package faceindex

import (
	"github.com/coder/hnsw"

	"github.com/photokit/facetree/internal/embedding"
)

// HNSW parameters for face print vectors.
const (
	hnswMaxNeighbors = 16

	// hnswShortlistPrints is how many nearest prints the graph is asked
	// for; their owning clusters form the candidate shortlist.
	hnswShortlistPrints = 32
)

// annIndex wraps an HNSW graph over individual reference prints to shortlist
// candidate clusters before exact distance confirmation. The graph is an
// accelerator only: every reported distance is recomputed exactly, and stale
// nodes left behind by merges are filtered at lookup time.
type annIndex struct {
	graph    *hnsw.Graph[int64]
	nodeFace map[int64]string // graph node -> owning face ID
	nextNode int64
}

func newANNIndex() *annIndex {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return &annIndex{
		graph:    g,
		nodeFace: make(map[int64]string),
	}
}

// addPrints indexes a cluster's prints. Undecodable prints are skipped.
func (a *annIndex) addPrints(faceID string, prints []embedding.Print) {
	for _, p := range prints {
		vec, err := embedding.Decode(p)
		if err != nil {
			continue
		}
		a.nextNode++
		a.graph.Add(hnsw.MakeNode(a.nextNode, vec))
		a.nodeFace[a.nextNode] = faceID
	}
}

// removeCluster forgets all nodes owned by a face ID. The HNSW graph keeps
// the vectors, but lookups drop nodes with no owner.
func (a *annIndex) removeCluster(faceID string) {
	for node, id := range a.nodeFace {
		if id == faceID {
			delete(a.nodeFace, node)
		}
	}
}

// shortlist returns the face IDs owning the nearest indexed prints, in
// insertion order of the clusters map's scan slice equivalent (deduplicated).
// Returns nil when the graph holds nothing useful, in which case the caller
// falls back to a full scan.
func (a *annIndex) shortlist(vec []float32, clusters map[string]*Cluster) []string {
	if len(a.nodeFace) == 0 {
		return nil
	}

	neighbors := a.graph.Search(vec, hnswShortlistPrints)
	if len(neighbors) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(neighbors))
	var out []string
	for _, n := range neighbors {
		id, ok := a.nodeFace[n.Key]
		if !ok {
			continue // node orphaned by a merge
		}
		if _, ok := clusters[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// EnableANN builds the HNSW shortlist over all current reference prints and
// keeps it updated on subsequent appends and merges. Matching results remain
// exact for the shortlisted clusters; with very large indexes the shortlist
// may rarely miss a marginally closer cluster, which is the accepted
// trade-off for avoiding full scans.
func (idx *Index) EnableANN() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ann := newANNIndex()
	for _, id := range idx.order {
		ann.addPrints(id, idx.clusters[id].ReferencePrints)
	}
	idx.ann = ann
}

// DisableANN drops the shortlist; matching falls back to exhaustive scans.
func (idx *Index) DisableANN() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ann = nil
}
