package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photokit/facetree/internal/faceindex"
)

// PeopleHandler serves the people directory backed by the face index.
type PeopleHandler struct {
	index *faceindex.Index
}

// NewPeopleHandler creates a people handler.
func NewPeopleHandler(index *faceindex.Index) *PeopleHandler {
	return &PeopleHandler{index: index}
}

// PersonResponse is the API shape of one face identity.
type PersonResponse struct {
	FaceID          string `json:"face_id"`
	DisplayName     string `json:"display_name,omitempty"`
	LabelSource     string `json:"label_source"`
	LinkedContactID string `json:"linked_contact_id,omitempty"`
	ReferencePrints int    `json:"reference_prints"`
	UpdatedAt       string `json:"updated_at"`
}

func personResponse(c faceindex.Cluster) PersonResponse {
	return PersonResponse{
		FaceID:          c.FaceID,
		DisplayName:     c.DisplayName,
		LabelSource:     string(c.LabelSource),
		LinkedContactID: c.LinkedContactID,
		ReferencePrints: len(c.ReferencePrints),
		UpdatedAt:       c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// List returns all face identities in creation order.
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	clusters := h.index.Clusters()
	people := make([]PersonResponse, 0, len(clusters))
	for _, c := range clusters {
		people = append(people, personResponse(c))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"people": people,
		"count":  len(people),
	})
}

// Get returns one face identity.
func (h *PeopleHandler) Get(w http.ResponseWriter, r *http.Request) {
	faceID := chi.URLParam(r, "faceId")
	c, ok := h.index.Cluster(faceID)
	if !ok {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	respondJSON(w, http.StatusOK, personResponse(c))
}

// RenameRequest is the body for manual renames.
type RenameRequest struct {
	DisplayName string `json:"display_name"`
}

// Rename applies a manual label to a face identity.
func (h *PeopleHandler) Rename(w http.ResponseWriter, r *http.Request) {
	faceID := chi.URLParam(r, "faceId")

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if !h.index.SetManualLabel(faceID, req.DisplayName) {
		respondError(w, http.StatusNotFound, "face not found or name empty")
		return
	}

	log.Printf("Renamed face %s to %q", sanitizeForLog(faceID), sanitizeForLog(req.DisplayName))
	c, _ := h.index.Cluster(faceID)
	respondJSON(w, http.StatusOK, personResponse(c))
}

// ClearName removes a face identity's label.
func (h *PeopleHandler) ClearName(w http.ResponseWriter, r *http.Request) {
	faceID := chi.URLParam(r, "faceId")
	if !h.index.ClearLabel(faceID) {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	c, _ := h.index.Cluster(faceID)
	respondJSON(w, http.StatusOK, personResponse(c))
}

// Assets returns the asset IDs mapped to a face identity.
func (h *PeopleHandler) Assets(w http.ResponseWriter, r *http.Request) {
	faceID := chi.URLParam(r, "faceId")
	if _, ok := h.index.Cluster(faceID); !ok {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	assets := h.index.AssetsForFace(faceID)
	respondJSON(w, http.StatusOK, map[string]any{
		"face_id": faceID,
		"assets":  assets,
		"count":   len(assets),
	})
}

// GroupingsRequest asks for single-linkage groupings of a face subset at one
// or more distance thresholds.
type GroupingsRequest struct {
	FaceIDs    []string  `json:"face_ids"`
	Thresholds []float64 `json:"thresholds"`
}

// Groupings computes per-threshold equivalence classes over the requested
// faces. The computation is O(n^2) and honors request cancellation.
func (h *PeopleHandler) Groupings(w http.ResponseWriter, r *http.Request) {
	var req GroupingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Thresholds) == 0 {
		respondError(w, http.StatusBadRequest, "at least one threshold is required")
		return
	}

	groupings, err := h.index.FaceGroupings(r.Context(), req.FaceIDs, req.Thresholds)
	if err != nil {
		respondError(w, http.StatusRequestTimeout, "grouping cancelled")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"groupings": groupings})
}
