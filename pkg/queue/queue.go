package queue

import (
	"context"
	"errors"

	"ai-lessoncraft-be/pkg/store"
)

// ErrJobNotFound is returned for status/result queries on unknown job ids.
// Callers always get an explicit not-found, never a silent default.
var ErrJobNotFound = errors.New("job not found")

// ErrResultNotReady is returned when the job exists but has not completed.
var ErrResultNotReady = errors.New("job result not ready")

// Queue accepts job submissions and yields them for execution. Two backends
// implement the identical contract: a JetStream-backed durable queue and an
// in-process channel queue. Callers are unaware which backend serves them.
type Queue interface {
	// Submit registers a job and returns its id immediately; execution is
	// always asynchronous.
	Submit(ctx context.Context, payload store.JobPayload) (string, error)

	// Status returns the job's state and progress snapshot.
	Status(ctx context.Context, jobId string) (*store.JobStatusView, error)

	// Result returns the completed job's payload.
	Result(ctx context.Context, jobId string) (*store.JobResult, error)

	// Start begins consuming submitted jobs into the worker pool.
	Start(ctx context.Context) error

	// Close releases backend resources.
	Close()
}

// jobMessage is the wire format a submission travels in between Submit and
// the consuming side of either backend.
type jobMessage struct {
	JobId   string           `json:"job_id"`
	Payload store.JobPayload `json:"payload"`
}
