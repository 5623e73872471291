package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ai-lessoncraft-be/pkg/events"

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

type recordingDelivery struct {
	mu       sync.Mutex
	payloads [][]byte
	block    chan struct{} // when set, Push blocks until closed
}

func (d *recordingDelivery) Push(requesterId uuid.UUID, payload []byte) {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, payload)
}

func (d *recordingDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
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

func TestPublishDeliversEnvelope(t *testing.T) {
	delivery := &recordingDelivery{}
	n := NewNotifier(delivery, nil, nopLogger{}, 8)
	defer n.Close()

	requester := uuid.New()
	n.Publish(requester, events.NewJobProgress("job-1", requester.String(), uuid.NewString(), 40, 2, 5))

	waitFor(t, func() bool { return delivery.count() == 1 })

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(delivery.payloads[0], &envelope))
	assert.Equal(t, "generation", envelope["type"])
	assert.Equal(t, events.TypeJobProgress, envelope["event_type"])

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, float64(40), data["percent"])
}

func TestPublishNeverBlocksWhenBufferFull(t *testing.T) {
	block := make(chan struct{})
	delivery := &recordingDelivery{block: block}
	n := NewNotifier(delivery, nil, nopLogger{}, 2)
	defer n.Close()

	requester := uuid.New()
	done := make(chan struct{})
	go func() {
		// Far more events than the buffer holds, against a stuck consumer.
		for i := 0; i < 50; i++ {
			n.Publish(requester, events.NewJobProgress("job-1", requester.String(), uuid.NewString(), i, i, 50))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}

	close(block)
	// Whatever made it into the buffer drains; the rest was dropped.
	waitFor(t, func() bool { return delivery.count() >= 1 })
	assert.Less(t, delivery.count(), 50)
}

func TestTerminalEventsReachTheBroker(t *testing.T) {
	delivery := &recordingDelivery{}
	publisher := &recordingPublisher{}
	n := NewNotifier(delivery, publisher, nopLogger{}, 8)
	defer n.Close()

	requester := uuid.New()
	contentId := uuid.NewString()
	n.Publish(requester, events.NewJobProgress("job-1", requester.String(), contentId, 50, 1, 2))
	n.Publish(requester, events.NewJobCompleted("job-1", requester.String(), contentId, 2, 0))
	n.Publish(requester, events.NewJobFailed("job-2", requester.String(), contentId, "boom"))

	waitFor(t, func() bool { return delivery.count() == 3 })
	waitFor(t, func() bool { return len(publisher.types()) == 2 })

	// Progress stays push-only; completions and failures are durable.
	assert.Equal(t, []string{events.TypeJobCompleted, events.TypeJobFailed}, publisher.types())
}

func TestCloseDuringConcurrentPublish(t *testing.T) {
	delivery := &recordingDelivery{}
	n := NewNotifier(delivery, nil, nopLogger{}, 4)

	requester := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n.Publish(requester, events.NewJobProgress("job-1", requester.String(), uuid.NewString(), j, j, 100))
			}
		}()
	}

	// Racing Close against in-flight Publish calls must never panic with a
	// send on a closed channel.
	time.Sleep(time.Millisecond)
	n.Close()
	n.Close() // idempotent
	wg.Wait()
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	delivery := &recordingDelivery{}
	n := NewNotifier(delivery, nil, nopLogger{}, 8)
	n.Close()

	n.Publish(uuid.New(), events.NewJobCompleted("job-1", uuid.NewString(), uuid.NewString(), 1, 0))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, delivery.count())
}
