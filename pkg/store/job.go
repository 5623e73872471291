package store

import (
	"time"

	"github.com/google/uuid"
)

// Job lifecycle states. A job has exactly one terminal state.
const (
	StatusQueued    = "QUEUED"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// GenerationUnit is one addressable sub-piece of a lesson (typically one slide).
// Units are processed strictly in Index order within a job.
type GenerationUnit struct {
	Id    uuid.UUID `json:"id"`
	Index int       `json:"index"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Notes string    `json:"notes,omitempty"` // author speaker notes
}

// JobFlags toggles the optional pipeline stages per job.
type JobFlags struct {
	Narrate bool `json:"narrate"`
	Teach   bool `json:"teach"`
}

// JobPayload is the full submission payload for one generation request.
type JobPayload struct {
	ContentId    uuid.UUID        `json:"content_id"`
	RequesterId  uuid.UUID        `json:"requester_id"`
	Units        []GenerationUnit `json:"units"`
	Flags        JobFlags         `json:"flags"`
	Theme        string           `json:"theme"`
	LearnerGrade string           `json:"learner_grade,omitempty"`
	LearnerName  string           `json:"learner_name,omitempty"`
}

// UnitArtifact is the output for a single unit. Degraded marks units whose
// stage calls failed; the job still completes and consumers that need failure
// visibility inspect this marker.
type UnitArtifact struct {
	UnitId         uuid.UUID `json:"unit_id"`
	Index          int       `json:"index"`
	Html           string    `json:"html"`
	AudioRef       string    `json:"audio_ref,omitempty"`
	TeachingScript string    `json:"teaching_script,omitempty"`
	KeyPoints      []string  `json:"key_points,omitempty"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
}

// JobResult is the opaque success payload of a completed job, denormalized
// per generation unit.
type JobResult struct {
	ContentId   uuid.UUID      `json:"content_id"`
	RequesterId uuid.UUID      `json:"requester_id"`
	Theme       string         `json:"theme"`
	Units       []UnitArtifact `json:"units"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Clone returns a deep copy so that cache keys never share mutable state.
func (r *JobResult) Clone() *JobResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Units = make([]UnitArtifact, len(r.Units))
	for i, u := range r.Units {
		cu := u
		cu.KeyPoints = append([]string(nil), u.KeyPoints...)
		cp.Units[i] = cu
	}
	return &cp
}

// JobProgress is the caller-visible progress snapshot. Percent is 0-100 and
// non-decreasing while the job is active.
type JobProgress struct {
	Percent     int `json:"percent"`
	CurrentUnit int `json:"current_unit"`
	TotalUnits  int `json:"total_units"`
}

// Job is the full record owned by the queue/worker pair for its lifetime.
// Immutable once Completed or Failed.
type Job struct {
	Id         string      `json:"id"`
	Payload    JobPayload  `json:"payload"`
	Status     string      `json:"status"`
	Progress   JobProgress `json:"progress"`
	Result     *JobResult  `json:"result,omitempty"`
	FailReason string      `json:"fail_reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// JobStatusView is the state+progress snapshot returned by status queries.
type JobStatusView struct {
	JobId      string      `json:"job_id"`
	State      string      `json:"state"`
	Progress   JobProgress `json:"progress"`
	FailReason string      `json:"fail_reason,omitempty"`
}
