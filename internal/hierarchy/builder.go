// Package hierarchy builds the multi-level people tree over face index
// clusters: one single-linkage agglomeration pass per level threshold, with
// deterministic node identity and label inheritance across rebuilds.
package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/faceindex"
	"github.com/photokit/facetree/internal/store"
	"github.com/photokit/facetree/internal/unionfind"
)

// DefaultRepCap bounds the representative prints carried per tree node.
const DefaultRepCap = 4

// cancelCheckInterval is how many pairwise comparisons run between
// cooperative cancellation checks.
const cancelCheckInterval = 128

// LeafSource is the face index boundary: the only two calls needed to decide
// and perform a rebuild.
type LeafSource interface {
	LeafClusters(repCap int) []faceindex.LeafSnapshot
	LeafClusterSignature(repCap int) (int, int)
}

// Builder owns the persisted people tree. Reads are served from the last
// committed build; a rebuild prepares the whole new tree aside and commits it
// atomically, so a cancelled build leaves the previous tree untouched.
type Builder struct {
	source LeafSource

	mu    sync.RWMutex // guards nodes and sig
	nodes map[string]*Node
	sig   Signature

	rebuildMu sync.Mutex // serializes rebuilds

	store *store.Store
}

// New creates a hierarchy builder, loading the persisted tree when storePath
// is set. A schema version mismatch on load starts fresh.
func New(source LeafSource, storePath string, debounce time.Duration) (*Builder, error) {
	b := &Builder{
		source: source,
		nodes:  make(map[string]*Node),
	}

	if storePath != "" {
		b.store = store.New(storePath, SchemaVersion, debounce, b.snapshotDocument)

		var doc document
		loaded, err := b.store.Load(&doc)
		if err != nil {
			return nil, fmt.Errorf("failed to load hierarchy: %w", err)
		}
		if loaded {
			for i := range doc.Nodes {
				n := doc.Nodes[i]
				if n.LabelSource == "" {
					n.LabelSource = faceindex.LabelNone
				}
				b.nodes[n.ID] = &n
			}
			b.sig = doc.Signature
		}
	}

	return b, nil
}

// snapshotDocument serializes the committed tree for the store.
func (b *Builder) snapshotDocument() any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	doc := document{Signature: b.sig}
	ids := make([]string, 0, len(b.nodes))
	for id := range b.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		doc.Nodes = append(doc.Nodes, b.nodes[id].clone())
	}
	return doc
}

// Flush forces a pending debounced write to disk.
func (b *Builder) Flush() error {
	if b.store == nil {
		return nil
	}
	return b.store.Flush()
}

// Close flushes any pending write and releases the store.
func (b *Builder) Close() error {
	return b.Flush()
}

// NeedsRebuild reports whether the persisted tree is stale for the given
// configuration: it compares thresholds, repCap and the face index leaf
// signature against the signature of the last committed build, without
// touching any embeddings.
func (b *Builder) NeedsRebuild(thresholds []float64, repCap int) bool {
	if repCap <= 0 {
		repCap = DefaultRepCap
	}
	count, used := b.source.LeafClusterSignature(repCap)
	want := Signature{
		Thresholds:   normalizeThresholds(thresholds),
		RepCap:       repCap,
		ClusterCount: count,
		UsedPrints:   used,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.sig.equal(want)
}

// levelNode is one working node during a build, carrying its canonical base
// leaf and decoded vectors.
type levelNode struct {
	node     *Node
	baseLeaf string
	vectors  [][]float32
}

// Rebuild runs the full deterministic multi-level agglomeration and commits
// the new tree. The non-leaf portion is always rebuilt from scratch; node
// identity and labels survive through the canonical-base-leaf ID derivation.
// Cancellation through ctx aborts without committing anything.
func (b *Builder) Rebuild(ctx context.Context, thresholds []float64, repCap int, onProgress ProgressFunc) error {
	b.rebuildMu.Lock()
	defer b.rebuildMu.Unlock()

	thresholds = normalizeThresholds(thresholds)
	if repCap <= 0 {
		repCap = DefaultRepCap
	}
	maxLevel := len(thresholds) - 1
	rep := newReporter(onProgress)
	rep.emit(Progress{Stage: StageFetchingLeaves}, true)

	leaves := b.source.LeafClusters(repCap)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].FaceID < leaves[j].FaceID })

	// Prior-build nodes, read once for label and ID stability decisions.
	b.mu.RLock()
	prev := make(map[string]*Node, len(b.nodes))
	for id, n := range b.nodes {
		prev[id] = n
	}
	b.mu.RUnlock()

	next := make(map[string]*Node, 2*len(leaves))
	now := time.Now().UTC()

	// Level 0: one leaf node per cluster. A leaf that already carried a
	// user label in the prior tree keeps it; otherwise it adopts the
	// cluster's own label.
	current := make([]*levelNode, 0, len(leaves))
	for _, leaf := range leaves {
		n := &Node{
			ID:                   leaf.FaceID,
			Level:                0,
			LabelSource:          faceindex.LabelNone,
			RepresentativePrints: leaf.Prints,
			UpdatedAt:            now,
		}
		if p, ok := prev[leaf.FaceID]; ok && p.userLabeled() {
			n.DisplayName = p.DisplayName
			n.LabelSource = p.LabelSource
			n.LinkedContactID = p.LinkedContactID
		} else if leaf.DisplayName != "" && leaf.LabelSource != faceindex.LabelNone {
			n.DisplayName = leaf.DisplayName
			n.LabelSource = leaf.LabelSource
			n.LinkedContactID = leaf.LinkedContactID
		}
		next[n.ID] = n
		current = append(current, &levelNode{node: n, baseLeaf: leaf.FaceID})
	}

	for level := 1; level <= maxLevel; level++ {
		groups, err := b.mergeLevel(ctx, current, thresholds[level], level, maxLevel, rep)
		if err != nil {
			return err
		}

		promoted := make([]*levelNode, 0, len(groups))
		for _, members := range groups {
			parent := b.makeParent(members, prev, level, repCap, now)
			next[parent.node.ID] = parent.node
			promoted = append(promoted, parent)
		}
		sort.Slice(promoted, func(i, j int) bool { return promoted[i].node.ID < promoted[j].node.ID })
		current = promoted
	}

	rep.emit(Progress{Stage: StageFinalizing, Level: maxLevel, Fraction: 1}, true)
	if err := ctx.Err(); err != nil {
		return err
	}

	// Everything left at the top level hangs off the synthetic root.
	root := &Node{
		ID:          RootID,
		Level:       maxLevel + 1,
		DisplayName: RootDisplayName,
		LabelSource: faceindex.LabelNone,
		UpdatedAt:   now,
	}
	for _, ln := range current {
		ln.node.ParentID = RootID
		root.ChildIDs = append(root.ChildIDs, ln.node.ID)
	}
	next[RootID] = root

	sig := Signature{
		Thresholds:   thresholds,
		RepCap:       repCap,
		ClusterCount: len(leaves),
	}
	for _, leaf := range leaves {
		sig.UsedPrints += len(leaf.Prints)
	}

	b.mu.Lock()
	b.nodes = next
	b.sig = sig
	b.mu.Unlock()

	// A finished rebuild must be durably visible right away.
	if b.store != nil {
		b.store.MarkDirty()
		if err := b.store.Flush(); err != nil {
			return fmt.Errorf("failed to persist hierarchy: %w", err)
		}
	}

	rep.emit(Progress{Stage: StageDone, Level: maxLevel, Fraction: 1}, true)
	return nil
}

// mergeLevel groups the current level's nodes by single linkage at the given
// threshold: two nodes link when any pair of their representative prints is
// at or below it. A threshold at or below zero short-circuits to singleton
// groups without any comparison.
func (b *Builder) mergeLevel(ctx context.Context, current []*levelNode, threshold float64, level, maxLevel int, rep *reporter) ([][]*levelNode, error) {
	n := len(current)

	if threshold <= 0 {
		// Disabled level: every node is its own group, skip the O(n^2) pass.
		groups := make([][]*levelNode, n)
		for i, ln := range current {
			groups[i] = []*levelNode{ln}
		}
		return groups, nil
	}

	for _, ln := range current {
		if ln.vectors != nil {
			continue
		}
		for _, p := range ln.node.RepresentativePrints {
			v, err := embedding.Decode(p)
			if err != nil {
				continue // undecodable print is absent, not fatal
			}
			ln.vectors = append(ln.vectors, v)
		}
	}

	uf := unionfind.New(n)
	totalPairs := int64(n) * int64(n-1) / 2
	var processed int64
	unions := 0

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			processed++
			if processed%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if uf.Connected(i, j) {
				continue
			}
			if anyPairWithin(current[i].vectors, current[j].vectors, threshold) {
				uf.Union(i, j)
				unions++
			}

			frac := 0.0
			if totalPairs > 0 {
				frac = float64(processed) / float64(totalPairs)
			}
			rep.emit(Progress{
				Stage:          StageMergingLevel,
				Level:          level,
				ProcessedPairs: processed,
				TotalPairs:     totalPairs,
				Unions:         unions,
				Fraction:       (float64(level-1) + frac) / float64(maxLevel),
			}, false)
		}
	}

	var groups [][]*levelNode
	for _, idxs := range uf.Groups() {
		members := make([]*levelNode, 0, len(idxs))
		for _, i := range idxs {
			members = append(members, current[i])
		}
		groups = append(groups, members)
	}
	return groups, nil
}

// anyPairWithin reports whether any vector pair is at or below the threshold.
func anyPairWithin(a, b [][]float32, threshold float64) bool {
	for _, va := range a {
		for _, vb := range b {
			if d, err := embedding.CosineDistance(va, vb); err == nil && d <= threshold {
				return true
			}
		}
	}
	return false
}

// makeParent synthesizes the parent node for one group. Its ID derives from
// the group's canonical base leaf, its label inherits from the prior build's
// node at the same ID or from the canonical child, and its representative
// prints are the children's union (deduplicated by raw bytes) up to repCap.
func (b *Builder) makeParent(members []*levelNode, prev map[string]*Node, level, repCap int, now time.Time) *levelNode {
	sort.Slice(members, func(i, j int) bool { return members[i].node.ID < members[j].node.ID })

	base, canonical := canonicalBase(members, prev, level)
	parent := &Node{
		ID:          nodeID(level, base),
		Level:       level,
		LabelSource: faceindex.LabelNone,
		UpdatedAt:   now,
	}

	if p, ok := prev[parent.ID]; ok && p.userLabeled() {
		parent.DisplayName = p.DisplayName
		parent.LabelSource = p.LabelSource
		parent.LinkedContactID = p.LinkedContactID
	} else if canonical != nil && canonical.node.userLabeled() {
		parent.DisplayName = canonical.node.DisplayName
		parent.LabelSource = canonical.node.LabelSource
		parent.LinkedContactID = canonical.node.LinkedContactID
	}

	for _, m := range members {
		m.node.ParentID = parent.ID
		parent.ChildIDs = append(parent.ChildIDs, m.node.ID)
		for _, p := range m.node.RepresentativePrints {
			if len(parent.RepresentativePrints) >= repCap {
				break
			}
			dup := false
			for _, q := range parent.RepresentativePrints {
				if embedding.Equal(p, q) {
					dup = true
					break
				}
			}
			if !dup {
				parent.RepresentativePrints = append(parent.RepresentativePrints, p)
			}
		}
	}

	return &levelNode{node: parent, baseLeaf: base}
}

// canonicalBase picks the group's anchor leaf through a ranked candidate
// chain, evaluated top-down:
//
//  1. a member whose lineage node at this level carried a manual label in
//     the prior build,
//  2. a member currently carrying a manual label,
//  3. the same two rules for contact labels,
//  4. the lexically smallest member base as a last resort.
//
// Returns the base leaf ID and the member that provided it (nil for the
// last-resort rule). Members must already be sorted by node ID.
func canonicalBase(members []*levelNode, prev map[string]*Node, level int) (string, *levelNode) {
	rules := []func(*levelNode) bool{
		func(m *levelNode) bool {
			p, ok := prev[nodeID(level, m.baseLeaf)]
			return ok && p.LabelSource == faceindex.LabelManual && p.DisplayName != ""
		},
		func(m *levelNode) bool {
			return m.node.LabelSource == faceindex.LabelManual && m.node.DisplayName != ""
		},
		func(m *levelNode) bool {
			p, ok := prev[nodeID(level, m.baseLeaf)]
			return ok && p.LabelSource == faceindex.LabelContact && p.DisplayName != ""
		},
		func(m *levelNode) bool {
			return m.node.LabelSource == faceindex.LabelContact && m.node.DisplayName != ""
		},
	}

	for _, rule := range rules {
		for _, m := range members {
			if rule(m) {
				return m.baseLeaf, m
			}
		}
	}

	base := members[0].baseLeaf
	for _, m := range members[1:] {
		if m.baseLeaf < base {
			base = m.baseLeaf
		}
	}
	return base, nil
}
