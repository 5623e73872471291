package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/pkg/events"

	"github.com/google/uuid"
)

// PushDelivery sends a serialized event to a requester's live connections.
// Implemented by the WebSocket hub.
type PushDelivery interface {
	Push(requesterId uuid.UUID, payload []byte)
}

// EventPublisher forwards events to the durable bus. Satisfied by the NATS
// publisher; nil when the broker is unreachable.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type queuedEvent struct {
	requesterId uuid.UUID
	event       events.Event
}

// Notifier is the fire-and-forget publish surface between the worker pool and
// the push channel. Events flow through a bounded channel; when it is full
// the event is dropped with a warning so a slow consumer can never block job
// execution. Delivery failures are swallowed and logged.
type Notifier struct {
	delivery  PushDelivery
	publisher EventPublisher
	events    chan queuedEvent
	logger    logger.ILogger

	// mu makes the closed check and the send a single atomic step, so a
	// concurrent Close can never leave Publish sending on a closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewNotifier starts the forwarding loop. delivery and publisher may each be
// nil; the notifier degrades to logging only.
func NewNotifier(delivery PushDelivery, publisher EventPublisher, log logger.ILogger, bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	n := &Notifier{
		delivery:  delivery,
		publisher: publisher,
		events:    make(chan queuedEvent, bufferSize),
		logger:    log,
	}
	go n.run()
	return n
}

// Publish enqueues an event for the requester. Never blocks.
func (n *Notifier) Publish(requesterId uuid.UUID, event events.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return
	}
	select {
	case n.events <- queuedEvent{requesterId: requesterId, event: event}:
	default:
		n.logger.Warn("Notifier", "Event buffer full, dropping event", map[string]interface{}{
			"event_type": event.EventType(),
			"user_id":    requesterId.String(),
		})
	}
}

func (n *Notifier) run() {
	for q := range n.events {
		data, err := json.Marshal(map[string]interface{}{
			"type":       "generation",
			"event_type": q.event.EventType(),
			"data":       q.event.Payload(),
		})
		if err != nil {
			n.logger.Error("Notifier", "Failed to serialize event", map[string]interface{}{"error": err.Error()})
			continue
		}

		if n.delivery != nil {
			n.delivery.Push(q.requesterId, data)
		}

		// Terminal events also go to the durable bus so out-of-process
		// listeners see completions. Progress is push-only.
		if n.publisher != nil && q.event.EventType() != events.TypeJobProgress {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := n.publisher.Publish(ctx, q.event); err != nil {
				n.logger.Warn("Notifier", "Failed to publish event to broker", map[string]interface{}{
					"event_type": q.event.EventType(),
					"error":      err.Error(),
				})
			}
			cancel()
		}
	}
}

// Close stops accepting events and drains the loop. Safe to call more than
// once.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	close(n.events)
}
