package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/pkg/pipeline"
	"ai-lessoncraft-be/pkg/store"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	generationStream  = "GENERATION"
	generationSubject = "generation.jobs"
	jobStateBucket    = "generation-jobs"
	workerDurable     = "generation-worker"
)

// NatsQueue is the durable broker backend. Job payloads travel through a
// JetStream work queue; job state lives in a JetStream KV bucket, which is
// the broker-native job-tracking primitive status and result queries read.
// Persisted jobs and state survive a process restart.
type NatsQueue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	worker *pipeline.Worker
	logger logger.ILogger
}

// NewNatsQueue connects strictly (no connect retry) so an unreachable broker
// surfaces as an error the startup factory can fall back on.
func NewNatsQueue(url string, worker *pipeline.Worker, log logger.ILogger) (*NatsQueue, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(3*time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      generationStream,
		Subjects:  []string{generationSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %q: %w", generationStream, err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: jobStateBucket,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure KV bucket %q: %w", jobStateBucket, err)
	}

	return &NatsQueue{
		nc:     nc,
		js:     js,
		kv:     kv,
		worker: worker,
		logger: log,
	}, nil
}

func (q *NatsQueue) Submit(ctx context.Context, payload store.JobPayload) (string, error) {
	job := &store.Job{
		Id:      uuid.New().String(),
		Payload: payload,
		Status:  store.StatusQueued,
		Progress: store.JobProgress{
			TotalUnits: len(payload.Units),
		},
		CreatedAt: time.Now(),
	}

	if err := q.putJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to record job state: %w", err)
	}

	data, err := json.Marshal(jobMessage{JobId: job.Id, Payload: payload})
	if err != nil {
		return "", err
	}

	if _, err := q.js.Publish(ctx, generationSubject, data); err != nil {
		return "", fmt.Errorf("failed to publish job: %w", err)
	}

	return job.Id, nil
}

func (q *NatsQueue) Start(ctx context.Context) error {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, generationStream, jetstream.ConsumerConfig{
		Durable:       workerDurable,
		FilterSubject: generationSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		var jm jobMessage
		if err := json.Unmarshal(msg.Data(), &jm); err != nil {
			q.logger.Error("NatsQueue", "Failed to unmarshal job message", map[string]interface{}{"error": err.Error()})
			msg.Ack() // invalid message, never retriable
			return
		}

		job, err := q.getJob(context.Background(), jm.JobId)
		if err != nil {
			// State record missing: rebuild from the message so the job
			// still runs after a KV wipe.
			job = &store.Job{
				Id:        jm.JobId,
				Payload:   jm.Payload,
				Status:    store.StatusQueued,
				Progress:  store.JobProgress{TotalUnits: len(jm.Payload.Units)},
				CreatedAt: time.Now(),
			}
			if err := q.putJob(context.Background(), job); err != nil {
				q.logger.Warn("NatsQueue", "Failed to restore job state", map[string]interface{}{
					"job_id": jm.JobId, "error": err.Error(),
				})
			}
		}

		// Ack before execution: job state is tracked in KV, and the
		// pipeline is best-effort rather than exactly-once.
		q.worker.Dispatch(job, q)
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	q.logger.Info("NatsQueue", "Consuming generation jobs", map[string]interface{}{
		"stream":  generationStream,
		"durable": workerDurable,
	})
	return nil
}

func (q *NatsQueue) Status(ctx context.Context, jobId string) (*store.JobStatusView, error) {
	job, err := q.getJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	return &store.JobStatusView{
		JobId:      job.Id,
		State:      job.Status,
		Progress:   job.Progress,
		FailReason: job.FailReason,
	}, nil
}

func (q *NatsQueue) Result(ctx context.Context, jobId string) (*store.JobResult, error) {
	job, err := q.getJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if job.Result == nil {
		return nil, ErrResultNotReady
	}
	return job.Result.Clone(), nil
}

func (q *NatsQueue) Close() {
	if q.nc != nil {
		q.nc.Close()
	}
}

func (q *NatsQueue) getJob(ctx context.Context, jobId string) (*store.Job, error) {
	entry, err := q.kv.Get(ctx, jobId)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job store.Job
	if err := json.Unmarshal(entry.Value(), &job); err != nil {
		return nil, fmt.Errorf("corrupt job state for %s: %w", jobId, err)
	}
	return &job, nil
}

func (q *NatsQueue) putJob(ctx context.Context, job *store.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.kv.Put(ctx, job.Id, data)
	return err
}

// Tracker implementation: read-modify-write against the KV record. Only the
// consuming worker writes a job's state after submission, so the
// read-modify-write needs no cross-process guard.

func (q *NatsQueue) mutateJob(jobId string, mutate func(*store.Job)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := q.getJob(ctx, jobId)
	if err != nil {
		q.logger.Warn("NatsQueue", "Failed to load job state for update", map[string]interface{}{
			"job_id": jobId, "error": err.Error(),
		})
		return
	}
	mutate(job)
	if err := q.putJob(ctx, job); err != nil {
		q.logger.Error("NatsQueue", "Failed to write job state", map[string]interface{}{
			"job_id": jobId, "error": err.Error(),
		})
	}
}

func (q *NatsQueue) MarkActive(jobId string) {
	q.mutateJob(jobId, func(job *store.Job) {
		now := time.Now()
		job.Status = store.StatusActive
		job.StartedAt = &now
	})
}

func (q *NatsQueue) UpdateProgress(jobId string, progress store.JobProgress) {
	q.mutateJob(jobId, func(job *store.Job) {
		if progress.Percent < job.Progress.Percent {
			return
		}
		job.Progress = progress
	})
}

func (q *NatsQueue) Complete(jobId string, result *store.JobResult) {
	q.mutateJob(jobId, func(job *store.Job) {
		now := time.Now()
		job.Status = store.StatusCompleted
		job.Result = result
		job.Progress.Percent = 100
		job.Progress.CurrentUnit = job.Progress.TotalUnits
		job.FinishedAt = &now
	})
}

func (q *NatsQueue) Fail(jobId string, reason string) {
	q.mutateJob(jobId, func(job *store.Job) {
		now := time.Now()
		job.Status = store.StatusFailed
		job.FailReason = reason
		job.FinishedAt = &now
	})
}
