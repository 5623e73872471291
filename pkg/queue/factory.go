package queue

import (
	"time"

	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/pkg/pipeline"
)

// Select picks the queue backend once at process start. The broker is tried
// exactly once; on failure (or when forced by configuration) the in-process
// backend is selected permanently for the process lifetime. Nothing outside
// this factory branches on backend identity.
func Select(natsURL string, forceInProcess bool, submitDelay time.Duration, worker *pipeline.Worker, log logger.ILogger) Queue {
	if forceInProcess {
		log.Info("QueueFactory", "In-process queue backend forced by configuration", nil)
		return NewChannelQueue(generationSubject, submitDelay, worker, log)
	}

	natsQueue, err := NewNatsQueue(natsURL, worker, log)
	if err != nil {
		log.Warn("QueueFactory", "Broker unreachable, falling back to in-process queue for process lifetime", map[string]interface{}{
			"nats_url": natsURL,
			"error":    err.Error(),
		})
		return NewChannelQueue(generationSubject, submitDelay, worker, log)
	}

	log.Info("QueueFactory", "Using JetStream queue backend", map[string]interface{}{"nats_url": natsURL})
	return natsQueue
}
