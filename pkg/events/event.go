package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "JOB_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Generation job event codes.
const (
	TypeJobProgress  = "JOB_PROGRESS"
	TypeJobCompleted = "JOB_COMPLETED"
	TypeJobFailed    = "JOB_FAILED"
)

// NewJobProgress builds the progress event emitted after each processed unit.
func NewJobProgress(jobId, requesterId, contentId string, percent, currentUnit, totalUnits int) Event {
	return BaseEvent{
		Type: TypeJobProgress,
		Data: map[string]interface{}{
			"job_id":       jobId,
			"user_id":      requesterId,
			"content_id":   contentId,
			"percent":      percent,
			"current_unit": currentUnit,
			"total_units":  totalUnits,
		},
		OccurredAt: time.Now(),
	}
}

// NewJobCompleted carries a summary, not the full artifact set. Callers fetch
// the result itself through the cache API.
func NewJobCompleted(jobId, requesterId, contentId string, totalUnits, degradedUnits int) Event {
	return BaseEvent{
		Type: TypeJobCompleted,
		Data: map[string]interface{}{
			"job_id":         jobId,
			"user_id":        requesterId,
			"content_id":     contentId,
			"total_units":    totalUnits,
			"degraded_units": degradedUnits,
		},
		OccurredAt: time.Now(),
	}
}

func NewJobFailed(jobId, requesterId, contentId, reason string) Event {
	return BaseEvent{
		Type: TypeJobFailed,
		Data: map[string]interface{}{
			"job_id":     jobId,
			"user_id":    requesterId,
			"content_id": contentId,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}
