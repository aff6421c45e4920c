package hierarchy

import (
	"fmt"
	"math"
	"time"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/faceindex"
)

// RootID is the fixed ID of the synthetic root node.
const RootID = "node-root"

// RootDisplayName is the synthetic root's display name.
const RootDisplayName = "People"

// SchemaVersion is bumped whenever the persisted tree layout changes.
const SchemaVersion = 1

// maxLevelThreshold caps a level threshold; cosine distances this large no
// longer separate faces meaningfully.
const maxLevelThreshold = 0.95

// Node is one tree node. Leaves (level 0) correspond 1:1 with face index
// clusters; every higher level is rebuilt wholesale from the level below.
type Node struct {
	ID                   string                `json:"id"`
	Level                int                   `json:"level"`
	ParentID             string                `json:"parent_id,omitempty"`
	ChildIDs             []string              `json:"child_ids,omitempty"`
	DisplayName          string                `json:"display_name,omitempty"`
	LabelSource          faceindex.LabelSource `json:"label_source"`
	LinkedContactID      string                `json:"linked_contact_id,omitempty"`
	RepresentativePrints []embedding.Print     `json:"representative_prints,omitempty"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// userLabeled reports whether the node carries a manual or contact label.
func (n *Node) userLabeled() bool {
	return n.DisplayName != "" && (n.LabelSource == faceindex.LabelManual || n.LabelSource == faceindex.LabelContact)
}

func (n *Node) clone() Node {
	out := *n
	out.ChildIDs = append([]string(nil), n.ChildIDs...)
	out.RepresentativePrints = append([]embedding.Print(nil), n.RepresentativePrints...)
	return out
}

// Signature identifies the inputs of the last build so NeedsRebuild can
// short-circuit without recomputing anything.
type Signature struct {
	Thresholds   []float64 `json:"thresholds"`
	RepCap       int       `json:"rep_cap"`
	ClusterCount int       `json:"cluster_count"`
	UsedPrints   int       `json:"used_prints"`
}

func (s Signature) equal(o Signature) bool {
	if s.RepCap != o.RepCap || s.ClusterCount != o.ClusterCount || s.UsedPrints != o.UsedPrints {
		return false
	}
	if len(s.Thresholds) != len(o.Thresholds) {
		return false
	}
	for i := range s.Thresholds {
		if s.Thresholds[i] != o.Thresholds[i] {
			return false
		}
	}
	return true
}

// document is the persisted hierarchy payload.
type document struct {
	Nodes     []Node    `json:"nodes"`
	Signature Signature `json:"signature"`
}

// nodeID derives a level node's ID from its canonical base leaf. Keeping the
// derivation deterministic is what lets labels accumulated on a node survive
// rebuilds as long as its anchor member persists in the group.
func nodeID(level int, baseLeaf string) string {
	return fmt.Sprintf("node-%d-%s", level, baseLeaf)
}

// normalizeThresholds clamps every level threshold to [0, maxLevelThreshold]
// and substitutes [0] for an empty list.
func normalizeThresholds(thresholds []float64) []float64 {
	if len(thresholds) == 0 {
		return []float64{0}
	}
	out := make([]float64, len(thresholds))
	for i, t := range thresholds {
		if t < 0 || math.IsNaN(t) {
			t = 0
		}
		if t > maxLevelThreshold {
			t = maxLevelThreshold
		}
		out[i] = t
	}
	return out
}
