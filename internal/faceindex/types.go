package faceindex

import (
	"time"

	"github.com/photokit/facetree/internal/embedding"
)

// LabelSource records where a cluster's display name came from. Manual labels
// dominate contact labels, which dominate no label.
type LabelSource string

// Label sources in ascending precedence.
const (
	LabelNone    LabelSource = "none"
	LabelContact LabelSource = "contact"
	LabelManual  LabelSource = "manual"
)

// rank maps a label source to its precedence for merge resolution.
func (s LabelSource) rank() int {
	switch s {
	case LabelManual:
		return 2
	case LabelContact:
		return 1
	default:
		return 0
	}
}

// Cluster is one persistent face identity: a bounded set of reference prints
// around the identity's centroid plus an optional label.
type Cluster struct {
	FaceID          string            `json:"face_id"`
	DisplayName     string            `json:"display_name,omitempty"`
	LabelSource     LabelSource       `json:"label_source"`
	LinkedContactID string            `json:"linked_contact_id,omitempty"`
	ReferencePrints []embedding.Print `json:"reference_prints"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// clone returns a deep copy safe to hand out to callers.
func (c *Cluster) clone() Cluster {
	out := *c
	out.ReferencePrints = make([]embedding.Print, len(c.ReferencePrints))
	copy(out.ReferencePrints, c.ReferencePrints)
	return out
}

// AssetState marks the outcome of face processing for one asset.
type AssetState string

// Asset processing outcomes.
const (
	AssetProcessed AssetState = "processed"
	AssetFailed    AssetState = "failed"
)

// AssetRecord tracks face processing for one asset so callers can retry
// failures without reprocessing successes.
type AssetRecord struct {
	State       AssetState `json:"state"`
	FaceCount   int        `json:"face_count"`
	AttemptedAt time.Time  `json:"attempted_at"`
}

// LeafSnapshot is the read-only view of a cluster handed across the boundary
// to the hierarchy builder.
type LeafSnapshot struct {
	FaceID          string
	DisplayName     string
	LabelSource     LabelSource
	LinkedContactID string
	Prints          []embedding.Print
}

// document is the persisted face index payload.
type document struct {
	Clusters    []Cluster              `json:"clusters"`
	AssetFaces  map[string][]string    `json:"asset_faces"`
	AssetStates map[string]AssetRecord `json:"asset_states"`
	NextFaceSeq int                    `json:"next_face_seq"`
}

// SchemaVersion is bumped whenever the persisted document layout changes.
// A mismatch on load falls back to a fresh empty index.
const SchemaVersion = 1
