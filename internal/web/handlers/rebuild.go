package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/photokit/facetree/internal/config"
	"github.com/photokit/facetree/internal/hierarchy"
)

// RebuildHandler starts and tracks asynchronous people-tree rebuilds.
type RebuildHandler struct {
	config     *config.Config
	builder    *hierarchy.Builder
	jobManager *JobManager
}

// NewRebuildHandler creates a rebuild handler.
func NewRebuildHandler(cfg *config.Config, builder *hierarchy.Builder, jm *JobManager) *RebuildHandler {
	return &RebuildHandler{config: cfg, builder: builder, jobManager: jm}
}

// RebuildRequest optionally overrides the configured thresholds and
// representative cap for one rebuild.
type RebuildRequest struct {
	Thresholds []float64 `json:"thresholds,omitempty"`
	RepCap     int       `json:"rep_cap,omitempty"`
	Force      bool      `json:"force,omitempty"`
}

// Start launches a rebuild job and returns its ID immediately.
func (h *RebuildHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req RebuildRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	thresholds := req.Thresholds
	if len(thresholds) == 0 {
		thresholds = h.config.Hierarchy.Thresholds
	}
	repCap := req.RepCap
	if repCap <= 0 {
		repCap = h.config.Hierarchy.RepCap
	}

	if !req.Force && !h.builder.NeedsRebuild(thresholds, repCap) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":  "up_to_date",
			"message": "tree already matches the current index and parameters",
		})
		return
	}

	jobID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	job := h.jobManager.CreateJob(jobID, thresholds, repCap, cancel)

	go h.runRebuild(ctx, job, thresholds, repCap)

	log.Printf("Started tree rebuild job %s", jobID)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

func (h *RebuildHandler) runRebuild(ctx context.Context, job *RebuildJob, thresholds []float64, repCap int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: rebuild job %s panicked: %v", job.ID, r)
			job.SetStatus(JobStatusFailed, "internal error")
			job.SendEvent(JobEvent{Type: "failed", Message: "internal error"})
		}
	}()

	job.SetStatus(JobStatusRunning, "")
	job.SendEvent(JobEvent{Type: "started", Message: "Rebuild started"})

	err := h.builder.Rebuild(ctx, thresholds, repCap, func(p hierarchy.Progress) {
		job.UpdateProgress(p)
		job.SendEvent(JobEvent{Type: "progress", Data: p})
	})

	switch {
	case errors.Is(err, context.Canceled):
		job.SetStatus(JobStatusCancelled, "")
		job.SendEvent(JobEvent{Type: "cancelled", Message: "Rebuild cancelled"})
	case err != nil:
		log.Printf("ERROR: rebuild job %s failed: %v", job.ID, err)
		job.SetStatus(JobStatusFailed, err.Error())
		job.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
	default:
		job.SetStatus(JobStatusCompleted, "")
		job.SendEvent(JobEvent{Type: "completed", Message: "Rebuild completed"})
	}
}

// Status returns a snapshot of one rebuild job.
func (h *RebuildHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams rebuild job events over SSE.
func (h *RebuildHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.jobManager.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(job SSEJob) any {
			return job.(*RebuildJob).Snapshot()
		},
	)
}

// Cancel requests cancellation of a running rebuild job.
func (h *RebuildHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}

	job.Cancel()
	log.Printf("Cancelled tree rebuild job %s", sanitizeForLog(jobID))
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusCancelled),
	})
}
