package queue

import (
	"context"
	"testing"
	"time"

	"ai-lessoncraft-be/pkg/cache"
	"ai-lessoncraft-be/pkg/notifier"
	"ai-lessoncraft-be/pkg/pipeline"
	"ai-lessoncraft-be/pkg/stages"
	"ai-lessoncraft-be/pkg/store"
	"ai-lessoncraft-be/pkg/tutor"

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

type instantRenderer struct{}

func (instantRenderer) Render(ctx context.Context, unit store.GenerationUnit, theme string) (string, error) {
	return "<section>" + unit.Title + "</section>", nil
}

type instantNarrator struct{}

func (instantNarrator) Narrate(ctx context.Context, text string) (string, error) {
	return "audio://" + uuid.NewString(), nil
}

type instantScripts struct{}

func (instantScripts) Generate(ctx context.Context, unit store.GenerationUnit, profile stages.LearnerProfile) (*stages.TeachingScript, error) {
	return &stages.TeachingScript{Script: "script", KeyPoints: []string{unit.Title}}, nil
}

type dropDelivery struct{}

func (dropDelivery) Push(requesterID uuid.UUID, payload []byte) {}

func newTestWorker(t *testing.T, resultCache *cache.ResultCache) *pipeline.Worker {
	t.Helper()

	log := nopLogger{}
	notif := notifier.NewNotifier(dropDelivery{}, nil, log, 64)
	t.Cleanup(notif.Close)

	worker := pipeline.NewWorker(
		pipeline.Config{MaxConcurrent: 2, RateLimit: 100, RateWindow: time.Minute},
		instantRenderer{},
		instantNarrator{},
		instantScripts{},
		resultCache,
		tutor.NewManager(time.Hour, time.Hour),
		notif,
		log,
	)
	t.Cleanup(worker.Stop)
	return worker
}

func newTestQueue(t *testing.T, resultCache *cache.ResultCache) *ChannelQueue {
	t.Helper()

	q := NewChannelQueue("test-jobs", 10*time.Millisecond, newTestWorker(t, resultCache), nopLogger{})
	t.Cleanup(q.Close)
	require.NoError(t, q.Start(context.Background()))
	return q
}

func testPayload(unitCount int) store.JobPayload {
	units := make([]store.GenerationUnit, unitCount)
	for i := range units {
		units[i] = store.GenerationUnit{Id: uuid.New(), Index: i, Title: "slide", Body: "body"}
	}
	return store.JobPayload{
		ContentId:   uuid.New(),
		RequesterId: uuid.New(),
		Units:       units,
		Theme:       "plain",
	}
}

func waitTerminal(t *testing.T, q *ChannelQueue, jobId string) *store.JobStatusView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, err := q.Status(context.Background(), jobId)
		require.NoError(t, err)
		if view.State == store.StatusCompleted || view.State == store.StatusFailed {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestSubmitReturnsBeforeExecution(t *testing.T) {
	q := newTestQueue(t, cache.NewResultCache(time.Minute, time.Minute))

	jobId, err := q.Submit(context.Background(), testPayload(2))
	require.NoError(t, err)
	require.NotEmpty(t, jobId)

	// Directly after submit the job must still be queued, never done inline.
	view, err := q.Status(context.Background(), jobId)
	require.NoError(t, err)
	assert.Equal(t, store.StatusQueued, view.State)

	view = waitTerminal(t, q, jobId)
	assert.Equal(t, store.StatusCompleted, view.State)
	assert.Equal(t, 100, view.Progress.Percent)
}

func TestResultLifecycle(t *testing.T) {
	q := newTestQueue(t, cache.NewResultCache(time.Minute, time.Minute))

	jobId, err := q.Submit(context.Background(), testPayload(3))
	require.NoError(t, err)

	// Before completion the only acceptable error is not-ready; execution may
	// already have finished on a fast machine.
	if _, err := q.Result(context.Background(), jobId); err != nil {
		assert.ErrorIs(t, err, ErrResultNotReady)
	}

	waitTerminal(t, q, jobId)

	result, err := q.Result(context.Background(), jobId)
	require.NoError(t, err)
	assert.Len(t, result.Units, 3)
}

func TestUnknownJobId(t *testing.T) {
	q := newTestQueue(t, cache.NewResultCache(time.Minute, time.Minute))

	_, err := q.Status(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = q.Result(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestEmptyPayloadFailsWithReason(t *testing.T) {
	q := newTestQueue(t, cache.NewResultCache(time.Minute, time.Minute))

	jobId, err := q.Submit(context.Background(), testPayload(0))
	require.NoError(t, err, "malformed payloads are accepted and fail asynchronously")

	view := waitTerminal(t, q, jobId)
	assert.Equal(t, store.StatusFailed, view.State)
	assert.Contains(t, view.FailReason, "no generation units")

	_, err = q.Result(context.Background(), jobId)
	assert.ErrorIs(t, err, ErrResultNotReady)
}

func TestConcurrentJobsSameContentServeLatest(t *testing.T) {
	resultCache := cache.NewResultCache(time.Minute, time.Minute)
	q := newTestQueue(t, resultCache)

	contentId := uuid.New()
	requesterA, requesterB := uuid.New(), uuid.New()

	payloadA := testPayload(2)
	payloadA.ContentId = contentId
	payloadA.RequesterId = requesterA
	payloadB := testPayload(2)
	payloadB.ContentId = contentId
	payloadB.RequesterId = requesterB

	jobA, err := q.Submit(context.Background(), payloadA)
	require.NoError(t, err)
	jobB, err := q.Submit(context.Background(), payloadB)
	require.NoError(t, err)

	waitTerminal(t, q, jobA)
	waitTerminal(t, q, jobB)

	// Both exact keys resolve, and a third party gets one of the two results
	// through the latest slot.
	gotA, found := resultCache.Get(contentId, requesterA)
	require.True(t, found)
	assert.Equal(t, requesterA, gotA.RequesterId)

	gotB, found := resultCache.Get(contentId, requesterB)
	require.True(t, found)
	assert.Equal(t, requesterB, gotB.RequesterId)

	latest, found := resultCache.Get(contentId, uuid.New())
	require.True(t, found)
	assert.Contains(t, []uuid.UUID{requesterA, requesterB}, latest.RequesterId)
}
