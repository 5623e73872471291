package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func (h *Hub) clientCount(requesterID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[requesterID])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestPushFansOutToAllConnections(t *testing.T) {
	h := NewHub(nil, nopLogger{})
	go h.Run()

	requester := uuid.New()
	first := &Client{Hub: h, RequesterID: requester, Send: make(chan []byte, 4)}
	second := &Client{Hub: h, RequesterID: requester, Send: make(chan []byte, 4)}
	h.register <- first
	h.register <- second
	waitFor(t, func() bool { return h.clientCount(requester) == 2 })

	h.Push(requester, []byte("hello"))

	assert.Equal(t, []byte("hello"), <-first.Send)
	assert.Equal(t, []byte("hello"), <-second.Send)

	// Nothing for other requesters.
	h.Push(uuid.New(), []byte("other"))
	select {
	case msg := <-first.Send:
		t.Fatalf("unexpected delivery %q", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSlowClientIsDroppedOnce(t *testing.T) {
	h := NewHub(nil, nopLogger{})
	go h.Run()

	requester := uuid.New()
	client := &Client{Hub: h, RequesterID: requester, Send: make(chan []byte, 1)}
	h.register <- client
	waitFor(t, func() bool { return h.clientCount(requester) == 1 })

	// First push fills the buffer; the second overflows it and drops the
	// client through the unregister path.
	h.Push(requester, []byte("one"))
	h.Push(requester, []byte("two"))
	waitFor(t, func() bool { return h.clientCount(requester) == 0 })

	// Further pushes after the drop must not panic on a closed channel.
	h.Push(requester, []byte("three"))

	// The unregister handler is the only closer of Send: the buffered message
	// drains, then the channel reports closed exactly once.
	msg, ok := <-client.Send
	require.True(t, ok)
	assert.Equal(t, []byte("one"), msg)
	_, ok = <-client.Send
	assert.False(t, ok, "Send should be closed after the drop")
}
