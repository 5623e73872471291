package queue

import (
	"context"
	"testing"
	"time"

	"ai-lessoncraft-be/pkg/cache"
	"ai-lessoncraft-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectForcedInProcess(t *testing.T) {
	worker := newTestWorker(t, cache.NewResultCache(time.Minute, time.Minute))

	q := Select("nats://127.0.0.1:4222", true, 10*time.Millisecond, worker, nopLogger{})
	cq, ok := q.(*ChannelQueue)
	require.True(t, ok, "forced configuration must select the in-process backend, got %T", q)
	cq.Close()
}

func TestSelectFallsBackWhenBrokerUnreachable(t *testing.T) {
	worker := newTestWorker(t, cache.NewResultCache(time.Minute, time.Minute))

	// Port 1 is never a NATS broker; the connect attempt fails fast and the
	// factory must hand back a working in-process queue.
	q := Select("nats://127.0.0.1:1", false, 10*time.Millisecond, worker, nopLogger{})
	cq, ok := q.(*ChannelQueue)
	require.True(t, ok, "unreachable broker must fall back to the in-process backend, got %T", q)
	t.Cleanup(cq.Close)

	// The fallback queue is fully functional end to end.
	require.NoError(t, cq.Start(context.Background()))
	jobId, err := cq.Submit(context.Background(), testPayload(2))
	require.NoError(t, err)

	view := waitTerminal(t, cq, jobId)
	assert.Equal(t, store.StatusCompleted, view.State)

	result, err := cq.Result(context.Background(), jobId)
	require.NoError(t, err)
	assert.Len(t, result.Units, 2)
}
