package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-lessoncraft-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub fans generation events out to a learner's live connections. It
// implements the notifier's PushDelivery. Redis pub/sub relays events to
// sibling instances; rdb may be nil when Redis is absent.
type Hub struct {
	// Registered clients map: RequesterID -> List of Clients (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.RequesterID] = append(h.clients[client.RequesterID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.RequesterID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.RequesterID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.RequesterID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.RequesterID]) == 0 {
					delete(h.clients, client.RequesterID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.RequesterID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Push delivers a serialized event to every live connection of the
// requester, then relays it through Redis for sibling instances. A client
// whose buffer is full is dropped rather than blocking delivery.
func (h *Hub) Push(requesterID uuid.UUID, payload []byte) {
	h.mu.RLock()
	clients, localFound := h.clients[requesterID]
	h.mu.RUnlock()

	if localFound {
		for _, client := range clients {
			select {
			case client.Send <- payload:
			default:
				// The unregister handler owns closing Send; closing here too
				// would double-close the channel.
				h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"user_id": requesterID})
				h.unregister <- client
			}
		}
	}

	if h.rdb != nil {
		relay := map[string]interface{}{
			"target_user_id": requesterID.String(),
			"message":        json.RawMessage(payload),
		}
		jsonPayload, _ := json.Marshal(relay)
		h.rdb.Publish(context.Background(), "generation_events", jsonPayload)
	}
}

// subscribeToRedis receives events relayed by sibling instances and delivers
// locally connected targets. Events for requesters not connected here are
// ignored.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "generation_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis relay parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		uid, err := uuid.Parse(payload.TargetUserID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		clients, ok := h.clients[uid]
		h.mu.RUnlock()

		if ok {
			for _, client := range clients {
				select {
				case client.Send <- payload.Message:
				default:
					h.unregister <- client
				}
			}
		}
	}
}
