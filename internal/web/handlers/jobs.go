package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/photokit/facetree/internal/hierarchy"
)

// eventChannelBuffer is the per-listener event buffer size.
const eventChannelBuffer = 64

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for
// async jobs. Embed this in job structs to get AddListener, RemoveListener,
// and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// RebuildJob represents an async hierarchy rebuild.
type RebuildJob struct {
	EventBroadcaster

	ID          string             `json:"id"`
	Status      JobStatus          `json:"status"`
	Thresholds  []float64          `json:"thresholds"`
	RepCap      int                `json:"rep_cap"`
	Progress    hierarchy.Progress `json:"progress"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *RebuildJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStatus transitions the job and stamps completion for terminal states.
func (j *RebuildJob) SetStatus(status JobStatus, errMsg string) {
	j.mu.Lock()
	j.Status = status
	j.Error = errMsg
	if isJobTerminal(status) {
		now := time.Now()
		j.CompletedAt = &now
	}
	j.mu.Unlock()
}

// UpdateProgress records the latest rebuild progress report.
func (j *RebuildJob) UpdateProgress(p hierarchy.Progress) {
	j.mu.Lock()
	j.Progress = p
	j.mu.Unlock()
}

// Snapshot returns a consistent copy for JSON responses.
func (j *RebuildJob) Snapshot() RebuildJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return RebuildJob{
		ID:          j.ID,
		Status:      j.Status,
		Thresholds:  append([]float64(nil), j.Thresholds...),
		RepCap:      j.RepCap,
		Progress:    j.Progress,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// Cancel cancels the rebuild job.
func (j *RebuildJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.SetStatus(JobStatusCancelled, "")
}

// JobManager manages async rebuild jobs.
type JobManager struct {
	jobs map[string]*RebuildJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*RebuildJob),
	}
}

// CreateJob creates a new rebuild job bound to a cancellable context.
func (m *JobManager) CreateJob(id string, thresholds []float64, repCap int, cancel context.CancelFunc) *RebuildJob {
	job := &RebuildJob{
		ID:         id,
		Status:     JobStatusPending,
		Thresholds: thresholds,
		RepCap:     repCap,
		StartedAt:  time.Now(),
	}
	job.cancel = cancel

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *RebuildJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}
