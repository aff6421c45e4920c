// Package faceindex owns the persistent set of face identities and the
// incremental match-or-create clustering over their reference prints.
package faceindex

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/store"
)

// Index is the face identity store. All mutating and reading operations
// against it are serialized through a single lock, which is what gives the
// match/merge/relabel sequences their atomicity.
type Index struct {
	mu  sync.Mutex
	cfg Config

	clusters map[string]*Cluster
	order    []string // face IDs in creation order, deterministic scan order
	nextSeq  int

	assetFaces  map[string][]string
	assetStates map[string]AssetRecord

	ann *annIndex // optional ANN shortlist, nil unless enabled

	store *store.Store
}

// New creates a face index, loading the persisted document when StorePath is
// set. A schema version mismatch on load starts fresh.
func New(cfg Config) (*Index, error) {
	cfg.normalize()

	idx := &Index{
		cfg:         cfg,
		clusters:    make(map[string]*Cluster),
		assetFaces:  make(map[string][]string),
		assetStates: make(map[string]AssetRecord),
	}

	if cfg.StorePath != "" {
		idx.store = store.New(cfg.StorePath, SchemaVersion, cfg.Debounce, idx.snapshotDocument)

		var doc document
		loaded, err := idx.store.Load(&doc)
		if err != nil {
			return nil, fmt.Errorf("failed to load face index: %w", err)
		}
		if loaded {
			idx.restore(doc)
		}
	}

	return idx, nil
}

// Config returns a copy of the effective (normalized) configuration.
func (idx *Index) Config() Config {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.cfg
}

// Count returns the number of clusters in the index.
func (idx *Index) Count() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.clusters)
}

// Cluster returns a copy of the cluster with the given face ID.
func (idx *Index) Cluster(faceID string) (Cluster, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c, ok := idx.clusters[faceID]
	if !ok {
		return Cluster{}, false
	}
	return c.clone(), true
}

// Clusters returns copies of all clusters in creation order.
func (idx *Index) Clusters() []Cluster {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Cluster, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.clusters[id].clone())
	}
	return out
}

// Flush forces a pending debounced write to disk.
func (idx *Index) Flush() error {
	if idx.store == nil {
		return nil
	}
	return idx.store.Flush()
}

// Close flushes any pending write and releases the store.
func (idx *Index) Close() error {
	if idx.store == nil {
		return nil
	}
	return idx.store.Close()
}

// restore rebuilds in-memory state from a persisted document.
func (idx *Index) restore(doc document) {
	for i := range doc.Clusters {
		c := doc.Clusters[i]
		if c.LabelSource == "" {
			c.LabelSource = LabelNone
		}
		idx.clusters[c.FaceID] = &c
		idx.order = append(idx.order, c.FaceID)
	}
	if doc.AssetFaces != nil {
		idx.assetFaces = doc.AssetFaces
	}
	if doc.AssetStates != nil {
		idx.assetStates = doc.AssetStates
	}
	idx.nextSeq = doc.NextFaceSeq
}

// snapshotDocument serializes the current state for the store. Called by the
// debounced writer; takes the index lock itself.
func (idx *Index) snapshotDocument() any {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc := document{
		AssetFaces:  make(map[string][]string, len(idx.assetFaces)),
		AssetStates: make(map[string]AssetRecord, len(idx.assetStates)),
		NextFaceSeq: idx.nextSeq,
	}
	for _, id := range idx.order {
		doc.Clusters = append(doc.Clusters, idx.clusters[id].clone())
	}
	for k, v := range idx.assetFaces {
		doc.AssetFaces[k] = append([]string(nil), v...)
	}
	for k, v := range idx.assetStates {
		doc.AssetStates[k] = v
	}
	return doc
}

// markDirty schedules a debounced write. Must not be called while holding mu.
func (idx *Index) markDirty() {
	if idx.store != nil {
		idx.store.MarkDirty()
	}
}

// newClusterLocked allocates a cluster seeded with the given print.
func (idx *Index) newClusterLocked(print embedding.Print) *Cluster {
	idx.nextSeq++
	now := time.Now().UTC()
	c := &Cluster{
		FaceID:          fmt.Sprintf("face-%06d", idx.nextSeq),
		LabelSource:     LabelNone,
		ReferencePrints: []embedding.Print{print},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	idx.clusters[c.FaceID] = c
	idx.order = append(idx.order, c.FaceID)
	if idx.ann != nil {
		idx.ann.addPrints(c.FaceID, c.ReferencePrints)
	}
	return c
}

// removeClusterLocked drops a cluster from the map and the scan order.
func (idx *Index) removeClusterLocked(faceID string) {
	delete(idx.clusters, faceID)
	for i, id := range idx.order {
		if id == faceID {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

// LeafClusters returns snapshots of all clusters with their reference prints
// capped to repCap, in creation order. This is one of the two calls the
// hierarchy builder makes across the store boundary.
func (idx *Index) LeafClusters(repCap int) []LeafSnapshot {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]LeafSnapshot, 0, len(idx.order))
	for _, id := range idx.order {
		c := idx.clusters[id]
		n := len(c.ReferencePrints)
		if repCap > 0 && n > repCap {
			n = repCap
		}
		prints := make([]embedding.Print, n)
		copy(prints, c.ReferencePrints[:n])
		out = append(out, LeafSnapshot{
			FaceID:          c.FaceID,
			DisplayName:     c.DisplayName,
			LabelSource:     c.LabelSource,
			LinkedContactID: c.LinkedContactID,
			Prints:          prints,
		})
	}
	return out
}

// LeafClusterSignature returns (cluster count, reference prints used at the
// given cap). The hierarchy builder compares it against its persisted
// signature to decide whether a rebuild is needed.
func (idx *Index) LeafClusterSignature(repCap int) (int, int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	used := 0
	for _, c := range idx.clusters {
		n := len(c.ReferencePrints)
		if repCap > 0 && n > repCap {
			n = repCap
		}
		used += n
	}
	return len(idx.clusters), used
}

// sortedUnique sorts a copy of ids and removes duplicates and blanks.
func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
