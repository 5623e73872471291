package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/pkg/pipeline"
	"ai-lessoncraft-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// ChannelQueue is the in-process fallback backend: an in-memory job registry
// plus a watermill gochannel bus. Submission publishes after a short delay so
// "submit returns immediately" semantics match the broker backend. All state
// is lost on restart; the durable backend does not have that limitation.
type ChannelQueue struct {
	pubSub      *gochannel.GoChannel
	topicName   string
	submitDelay time.Duration
	worker      *pipeline.Worker
	logger      logger.ILogger

	mu   sync.RWMutex
	jobs map[string]*store.Job
}

func NewChannelQueue(topicName string, submitDelay time.Duration, worker *pipeline.Worker, log logger.ILogger) *ChannelQueue {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	return &ChannelQueue{
		pubSub:      pubSub,
		topicName:   topicName,
		submitDelay: submitDelay,
		worker:      worker,
		logger:      log,
		jobs:        make(map[string]*store.Job),
	}
}

func (q *ChannelQueue) Submit(ctx context.Context, payload store.JobPayload) (string, error) {
	job := &store.Job{
		Id:      uuid.New().String(),
		Payload: payload,
		Status:  store.StatusQueued,
		Progress: store.JobProgress{
			TotalUnits: len(payload.Units),
		},
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	q.jobs[job.Id] = job
	q.mu.Unlock()

	data, err := json.Marshal(jobMessage{JobId: job.Id, Payload: payload})
	if err != nil {
		return "", err
	}

	// Publish after a short delay so submission never executes inline.
	go func() {
		time.Sleep(q.submitDelay)
		msg := message.NewMessage(watermill.NewUUID(), data)
		if err := q.pubSub.Publish(q.topicName, msg); err != nil {
			q.logger.Error("ChannelQueue", "Failed to publish job", map[string]interface{}{
				"job_id": job.Id,
				"error":  err.Error(),
			})
			q.Fail(job.Id, "failed to enqueue job for execution")
		}
	}()

	return job.Id, nil
}

func (q *ChannelQueue) Start(ctx context.Context) error {
	messages, err := q.pubSub.Subscribe(ctx, q.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var jm jobMessage
			if err := json.Unmarshal(msg.Payload, &jm); err != nil {
				q.logger.Error("ChannelQueue", "Failed to unmarshal job message", map[string]interface{}{"error": err.Error()})
				msg.Ack() // invalid message, never retriable
				continue
			}

			q.mu.RLock()
			job, found := q.jobs[jm.JobId]
			q.mu.RUnlock()
			if !found {
				q.logger.Warn("ChannelQueue", "Job message for unknown job", map[string]interface{}{"job_id": jm.JobId})
				msg.Ack()
				continue
			}

			q.worker.Dispatch(job, q)
			msg.Ack()
		}
	}()

	return nil
}

func (q *ChannelQueue) Status(ctx context.Context, jobId string) (*store.JobStatusView, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, found := q.jobs[jobId]
	if !found {
		return nil, ErrJobNotFound
	}
	return &store.JobStatusView{
		JobId:      job.Id,
		State:      job.Status,
		Progress:   job.Progress,
		FailReason: job.FailReason,
	}, nil
}

func (q *ChannelQueue) Result(ctx context.Context, jobId string) (*store.JobResult, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, found := q.jobs[jobId]
	if !found {
		return nil, ErrJobNotFound
	}
	if job.Result == nil {
		return nil, ErrResultNotReady
	}
	return job.Result.Clone(), nil
}

func (q *ChannelQueue) Close() {
	if err := q.pubSub.Close(); err != nil {
		q.logger.Warn("ChannelQueue", "Error closing pubsub", map[string]interface{}{"error": err.Error()})
	}
}

// Tracker implementation. The worker reports lifecycle transitions here; the
// registry entry is the single source of truth for this backend.

func (q *ChannelQueue) MarkActive(jobId string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, found := q.jobs[jobId]; found {
		now := time.Now()
		job.Status = store.StatusActive
		job.StartedAt = &now
	}
}

func (q *ChannelQueue) UpdateProgress(jobId string, progress store.JobProgress) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, found := q.jobs[jobId]
	if !found {
		return
	}
	// Progress never regresses while a job is active.
	if progress.Percent < job.Progress.Percent {
		return
	}
	job.Progress = progress
}

func (q *ChannelQueue) Complete(jobId string, result *store.JobResult) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, found := q.jobs[jobId]
	if !found {
		return
	}
	now := time.Now()
	job.Status = store.StatusCompleted
	job.Result = result
	job.Progress.Percent = 100
	job.Progress.CurrentUnit = job.Progress.TotalUnits
	job.FinishedAt = &now
}

func (q *ChannelQueue) Fail(jobId string, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, found := q.jobs[jobId]
	if !found {
		return
	}
	now := time.Now()
	job.Status = store.StatusFailed
	job.FailReason = reason
	job.FinishedAt = &now
}
