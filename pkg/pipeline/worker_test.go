package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-lessoncraft-be/pkg/events"
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

// fakeTracker records the lifecycle calls the worker makes against the
// owning backend.
type fakeTracker struct {
	mu       sync.Mutex
	active   bool
	progress []store.JobProgress
	result   *store.JobResult
	failedAs string
	done     chan struct{}
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{done: make(chan struct{})}
}

func (t *fakeTracker) MarkActive(jobId string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
}

func (t *fakeTracker) UpdateProgress(jobId string, p store.JobProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = append(t.progress, p)
}

func (t *fakeTracker) Complete(jobId string, result *store.JobResult) {
	t.mu.Lock()
	t.result = result
	t.mu.Unlock()
	close(t.done)
}

func (t *fakeTracker) Fail(jobId string, reason string) {
	t.mu.Lock()
	t.failedAs = reason
	t.mu.Unlock()
	close(t.done)
}

func (t *fakeTracker) wait(tb testing.TB) {
	tb.Helper()
	select {
	case <-t.done:
	case <-time.After(5 * time.Second):
		tb.Fatal("job never reached a terminal state")
	}
}

type fakeRenderer struct {
	failIndexes map[int]bool
}

func (r *fakeRenderer) Render(ctx context.Context, unit store.GenerationUnit, theme string) (string, error) {
	if r.failIndexes[unit.Index] {
		return "", errors.New("renderer unavailable")
	}
	return "<section>" + unit.Title + "</section>", nil
}

type fakeNarrator struct{}

func (fakeNarrator) Narrate(ctx context.Context, text string) (string, error) {
	return "audio://" + uuid.NewString(), nil
}

type fakeScripts struct {
	calls int
	mu    sync.Mutex
}

func (s *fakeScripts) Generate(ctx context.Context, unit store.GenerationUnit, profile stages.LearnerProfile) (*stages.TeachingScript, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return &stages.TeachingScript{
		Script:    "Let's explore " + unit.Title + ".",
		KeyPoints: []string{unit.Title},
	}, nil
}

type fakeSink struct {
	mu  sync.Mutex
	err error
	got *store.JobResult
}

func (s *fakeSink) Put(contentId, requesterId uuid.UUID, result *store.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = result
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *fakeNotifier) Publish(requesterId uuid.UUID, event events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.EventType())
	}
	return out
}

func testPayload(unitCount int, flags store.JobFlags) store.JobPayload {
	units := make([]store.GenerationUnit, unitCount)
	for i := range units {
		units[i] = store.GenerationUnit{
			Id:    uuid.New(),
			Index: i,
			Title: "Unit " + string(rune('A'+i)),
			Body:  "body",
		}
	}
	return store.JobPayload{
		ContentId:    uuid.New(),
		RequesterId:  uuid.New(),
		Units:        units,
		Flags:        flags,
		Theme:        "chalkboard",
		LearnerGrade: "5",
		LearnerName:  "Sam",
	}
}

func newTestWorker(renderer stages.Renderer, scripts stages.ScriptGenerator, sink ResultSink, notif ProgressNotifier) (*Worker, *tutor.Manager) {
	tutorMgr := tutor.NewManager(time.Hour, time.Hour)
	w := NewWorker(
		Config{MaxConcurrent: 2, RateLimit: 100, RateWindow: time.Minute},
		renderer,
		fakeNarrator{},
		scripts,
		sink,
		tutorMgr,
		notif,
		nopLogger{},
	)
	return w, tutorMgr
}

func TestExecuteTeachingJob(t *testing.T) {
	scripts := &fakeScripts{}
	sink := &fakeSink{}
	notif := &fakeNotifier{}
	w, tutorMgr := newTestWorker(&fakeRenderer{}, scripts, sink, notif)
	defer w.Stop()

	payload := testPayload(5, store.JobFlags{Narrate: true, Teach: true})
	tracker := newFakeTracker()
	w.Dispatch(&store.Job{Id: "job-1", Payload: payload}, tracker)
	tracker.wait(t)

	require.NotNil(t, tracker.result, "job should complete")
	require.Len(t, tracker.result.Units, 5)

	// Teaching scripts are only produced for the leading units.
	assert.Equal(t, 3, scripts.calls)
	for i, artifact := range tracker.result.Units {
		assert.NotEmpty(t, artifact.Html, "unit %d html", i)
		assert.NotEmpty(t, artifact.AudioRef, "unit %d audio", i)
		if i < 3 {
			assert.NotEmpty(t, artifact.TeachingScript, "unit %d script", i)
		} else {
			assert.Empty(t, artifact.TeachingScript, "unit %d should have no script", i)
		}
		assert.False(t, artifact.Degraded)
	}

	// Progress is per-unit, monotonic, and ends at 100.
	require.Len(t, tracker.progress, 5)
	last := 0
	for _, p := range tracker.progress {
		assert.GreaterOrEqual(t, p.Percent, last)
		last = p.Percent
	}
	assert.Equal(t, 100, tracker.progress[len(tracker.progress)-1].Percent)

	// Taught units left memory behind.
	for i, unit := range payload.Units[:3] {
		_, found := tutorMgr.GetLastExplanation(payload.ContentId, unit.Id)
		assert.True(t, found, "unit %d should be remembered", i)
	}

	// Event stream: 5 progress events then a completion.
	types := notif.types()
	require.Len(t, types, 6)
	assert.Equal(t, events.TypeJobCompleted, types[5])
}

func TestExecuteLaterScriptsCarryContinuity(t *testing.T) {
	scripts := &fakeScripts{}
	sink := &fakeSink{}
	w, _ := newTestWorker(&fakeRenderer{}, scripts, sink, &fakeNotifier{})
	defer w.Stop()

	payload := testPayload(3, store.JobFlags{Teach: true})
	tracker := newFakeTracker()
	w.Dispatch(&store.Job{Id: "job-cont", Payload: payload}, tracker)
	tracker.wait(t)

	require.NotNil(t, tracker.result)
	// The first script has no prior context; the second references it.
	first := tracker.result.Units[0].TeachingScript
	second := tracker.result.Units[1].TeachingScript
	assert.True(t, strings.HasPrefix(first, "Let's explore"), "first script %q should be bare", first)
	assert.False(t, strings.HasPrefix(second, "Let's explore"), "second script %q should open with continuity", second)
}

func TestExecuteUnitFailureDegradesButCompletes(t *testing.T) {
	sink := &fakeSink{}
	notif := &fakeNotifier{}
	w, _ := newTestWorker(&fakeRenderer{failIndexes: map[int]bool{1: true}}, &fakeScripts{}, sink, notif)
	defer w.Stop()

	payload := testPayload(3, store.JobFlags{})
	tracker := newFakeTracker()
	w.Dispatch(&store.Job{Id: "job-2", Payload: payload}, tracker)
	tracker.wait(t)

	require.NotNil(t, tracker.result, "stage failure must not fail the job")
	assert.Empty(t, tracker.failedAs)

	degraded := tracker.result.Units[1]
	assert.True(t, degraded.Degraded)
	assert.Equal(t, "renderer unavailable", degraded.DegradedReason)
	assert.Contains(t, degraded.Html, "could not be generated")

	assert.False(t, tracker.result.Units[0].Degraded)
	assert.False(t, tracker.result.Units[2].Degraded)
}

func TestExecuteEmptyPayloadFails(t *testing.T) {
	notif := &fakeNotifier{}
	w, _ := newTestWorker(&fakeRenderer{}, &fakeScripts{}, &fakeSink{}, notif)
	defer w.Stop()

	payload := testPayload(0, store.JobFlags{})
	tracker := newFakeTracker()
	w.Dispatch(&store.Job{Id: "job-3", Payload: payload}, tracker)
	tracker.wait(t)

	assert.Nil(t, tracker.result)
	assert.Contains(t, tracker.failedAs, "no generation units")

	types := notif.types()
	require.Len(t, types, 1)
	assert.Equal(t, events.TypeJobFailed, types[0])
}

func TestExecuteSinkFailureFailsJob(t *testing.T) {
	sink := &fakeSink{err: errors.New("cache write rejected")}
	w, _ := newTestWorker(&fakeRenderer{}, &fakeScripts{}, sink, &fakeNotifier{})
	defer w.Stop()

	payload := testPayload(2, store.JobFlags{})
	tracker := newFakeTracker()
	w.Dispatch(&store.Job{Id: "job-4", Payload: payload}, tracker)
	tracker.wait(t)

	assert.Nil(t, tracker.result)
	assert.Contains(t, tracker.failedAs, "cache write rejected")

	// Every unit was processed before the store rejected the result, so the
	// failed job legitimately reports full progress. State wins over percent.
	require.Len(t, tracker.progress, 2)
	assert.Equal(t, 100, tracker.progress[len(tracker.progress)-1].Percent)
}

func TestConcurrencyCeiling(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0

	renderer := renderFunc(func(ctx context.Context, unit store.GenerationUnit, theme string) (string, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return "<section/>", nil
	})

	w, _ := newTestWorker(renderer, &fakeScripts{}, &fakeSink{}, &fakeNotifier{})
	defer w.Stop()

	trackers := make([]*fakeTracker, 4)
	for i := range trackers {
		trackers[i] = newFakeTracker()
		w.Dispatch(&store.Job{Id: uuid.NewString(), Payload: testPayload(1, store.JobFlags{})}, trackers[i])
	}
	for _, tr := range trackers {
		tr.wait(t)
	}

	assert.LessOrEqual(t, peak, 2, "active jobs must never exceed MaxConcurrent")
}

type renderFunc func(ctx context.Context, unit store.GenerationUnit, theme string) (string, error)

func (f renderFunc) Render(ctx context.Context, unit store.GenerationUnit, theme string) (string, error) {
	return f(ctx, unit, theme)
}
