package service

import (
	"context"

	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/pkg/events"
	pktNats "ai-lessoncraft-be/pkg/nats"
)

// EventLogService is the durable consumer side of the event bus. It drains
// the events stream and records terminal job outcomes, so a completion is on
// record even when no client was connected when it happened.
type EventLogService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewEventLogService(sub *pktNats.Subscriber, log logger.ILogger) *EventLogService {
	return &EventLogService{subscriber: sub, logger: log}
}

// Start registers the durable consumer. Returns immediately; consumption runs
// on the subscriber's own goroutines.
func (s *EventLogService) Start() error {
	return s.subscriber.Subscribe("events.>", "generation-event-log", func(ctx context.Context, event events.Event) error {
		switch event.EventType() {
		case events.TypeJobCompleted:
			s.logger.Info("EventLog", "Generation job completed", event.Payload())
		case events.TypeJobFailed:
			s.logger.Warn("EventLog", "Generation job failed", event.Payload())
		default:
			s.logger.Debug("EventLog", "Event received", map[string]interface{}{"type": event.EventType()})
		}
		return nil
	})
}
