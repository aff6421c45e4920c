package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photokit/facetree/internal/config"
	"github.com/photokit/facetree/internal/hierarchy"
)

// TreeHandler serves read-only queries against the committed people tree.
type TreeHandler struct {
	config  *config.Config
	builder *hierarchy.Builder
}

// NewTreeHandler creates a tree handler.
func NewTreeHandler(cfg *config.Config, builder *hierarchy.Builder) *TreeHandler {
	return &TreeHandler{config: cfg, builder: builder}
}

// NodeResponse is the API shape of one tree node.
type NodeResponse struct {
	ID              string   `json:"id"`
	Level           int      `json:"level"`
	ParentID        string   `json:"parent_id,omitempty"`
	ChildIDs        []string `json:"child_ids,omitempty"`
	DisplayName     string   `json:"display_name,omitempty"`
	LabelSource     string   `json:"label_source"`
	LinkedContactID string   `json:"linked_contact_id,omitempty"`
}

func nodeResponse(n hierarchy.Node) NodeResponse {
	return NodeResponse{
		ID:              n.ID,
		Level:           n.Level,
		ParentID:        n.ParentID,
		ChildIDs:        n.ChildIDs,
		DisplayName:     n.DisplayName,
		LabelSource:     string(n.LabelSource),
		LinkedContactID: n.LinkedContactID,
	}
}

// Root returns the synthetic root node.
func (h *TreeHandler) Root(w http.ResponseWriter, r *http.Request) {
	root, ok := h.builder.Root()
	if !ok {
		respondError(w, http.StatusNotFound, "tree has not been built yet")
		return
	}
	respondJSON(w, http.StatusOK, nodeResponse(root))
}

// Node returns one tree node.
func (h *TreeHandler) Node(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")
	n, ok := h.builder.Node(nodeID)
	if !ok {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}
	respondJSON(w, http.StatusOK, nodeResponse(n))
}

// Children returns a node's children in child-list order.
func (h *TreeHandler) Children(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")
	if _, ok := h.builder.Node(nodeID); !ok {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}
	children := h.builder.Children(nodeID)
	out := make([]NodeResponse, 0, len(children))
	for _, c := range children {
		out = append(out, nodeResponse(c))
	}
	respondJSON(w, http.StatusOK, map[string]any{"children": out})
}

// Leaves returns all level-0 descendants of a node.
func (h *TreeHandler) Leaves(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")
	if _, ok := h.builder.Node(nodeID); !ok {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}
	leaves := h.builder.LeafDescendants(nodeID)
	respondJSON(w, http.StatusOK, map[string]any{
		"node_id": nodeID,
		"leaves":  leaves,
		"count":   len(leaves),
	})
}

// DisplayName resolves the preferred display name for a leaf through its
// ancestor chain.
func (h *TreeHandler) DisplayName(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")
	if _, ok := h.builder.Node(nodeID); !ok {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"node_id":      nodeID,
		"display_name": h.builder.DisplayNamePreferred(nodeID),
	})
}

// Stale reports whether the committed tree is stale for the configured
// thresholds and representative cap.
func (h *TreeHandler) Stale(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{
		"needs_rebuild": h.builder.NeedsRebuild(h.config.Hierarchy.Thresholds, h.config.Hierarchy.RepCap),
	})
}
