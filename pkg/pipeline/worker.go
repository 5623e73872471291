package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/pkg/events"
	"ai-lessoncraft-be/pkg/stages"
	"ai-lessoncraft-be/pkg/store"
	"ai-lessoncraft-be/pkg/tutor"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// teachUnitLimit caps teaching-script enrichment to the opening units of a
// job. Tutoring-script generation is the most expensive stage; the rest of
// the lesson ships without it and can be enriched on demand later.
const teachUnitLimit = 3

// Tracker is the backend-side bookkeeping surface for one job's lifecycle.
// Both queue backends implement it, so the worker never knows which backend
// owns the job.
type Tracker interface {
	MarkActive(jobId string)
	UpdateProgress(jobId string, progress store.JobProgress)
	Complete(jobId string, result *store.JobResult)
	Fail(jobId string, reason string)
}

// ProgressNotifier is the fire-and-forget event surface.
type ProgressNotifier interface {
	Publish(requesterId uuid.UUID, event events.Event)
}

// ResultSink receives completed results. Implemented by the result cache.
type ResultSink interface {
	Put(contentId, requesterId uuid.UUID, result *store.JobResult) error
}

// Config bounds worker throughput.
type Config struct {
	MaxConcurrent int           // concurrency ceiling for active jobs
	RateLimit     int           // max job starts per RateWindow; <= 0 disables
	RateWindow    time.Duration
}

// Worker executes generation jobs: an ordered pipeline over the job's units,
// with render always, narration and tutoring per the job's flags. Unit-level
// stage failures degrade that unit and the job continues; only orchestration
// failures mark the job Failed.
type Worker struct {
	cfg      Config
	renderer stages.Renderer
	narrator stages.Narrator
	scripts  stages.ScriptGenerator
	sink     ResultSink
	tutor    *tutor.Manager
	notifier ProgressNotifier
	logger   logger.ILogger

	limiter *rate.Limiter
	slots   chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWorker(
	cfg Config,
	renderer stages.Renderer,
	narrator stages.Narrator,
	scripts stages.ScriptGenerator,
	sink ResultSink,
	tutorMgr *tutor.Manager,
	notif ProgressNotifier,
	log logger.ILogger,
) *Worker {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		// Token bucket shaped as "at most N starts per rolling window".
		limiter = rate.NewLimiter(rate.Every(cfg.RateWindow/time.Duration(cfg.RateLimit)), cfg.RateLimit)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		cfg:      cfg,
		renderer: renderer,
		narrator: narrator,
		scripts:  scripts,
		sink:     sink,
		tutor:    tutorMgr,
		notifier: notif,
		logger:   log,
		limiter:  limiter,
		slots:    make(chan struct{}, cfg.MaxConcurrent),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dispatch schedules one job for execution and returns immediately. The job
// stays Queued until a rate token and a concurrency slot free up. tracker is
// the backend that owns the job record.
func (w *Worker) Dispatch(job *store.Job, tracker Tracker) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		if err := w.limiter.Wait(w.ctx); err != nil {
			tracker.Fail(job.Id, "worker shutting down before job start")
			return
		}
		select {
		case w.slots <- struct{}{}:
		case <-w.ctx.Done():
			tracker.Fail(job.Id, "worker shutting down before job start")
			return
		}
		defer func() { <-w.slots }()

		w.execute(w.ctx, job, tracker)
	}()
}

// Stop cancels the root context and waits for in-flight jobs to wind down.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) execute(ctx context.Context, job *store.Job, tracker Tracker) {
	payload := job.Payload
	total := len(payload.Units)

	fail := func(reason string) {
		w.logger.Error("Worker", "Job failed", map[string]interface{}{
			"job_id": job.Id,
			"reason": reason,
		})
		tracker.Fail(job.Id, reason)
		w.notifier.Publish(payload.RequesterId,
			events.NewJobFailed(job.Id, payload.RequesterId.String(), payload.ContentId.String(), reason))
	}

	if total == 0 {
		fail("malformed payload: job has no generation units")
		return
	}

	tracker.MarkActive(job.Id)
	w.logger.Info("Worker", "Job started", map[string]interface{}{
		"job_id":      job.Id,
		"content_id":  payload.ContentId.String(),
		"total_units": total,
	})

	var sessionId string
	if payload.Flags.Teach {
		sessionId = w.tutor.StartSession(payload.RequesterId, payload.ContentId, total)
	}

	profile := stages.LearnerProfile{Grade: payload.LearnerGrade, Name: payload.LearnerName}
	units := make([]store.UnitArtifact, 0, total)
	degraded := 0

	for i, unit := range payload.Units {
		if ctx.Err() != nil {
			fail("job cancelled during execution")
			return
		}

		artifact := w.processUnit(ctx, job.Id, payload, unit, i, sessionId, profile)
		if artifact.Degraded {
			degraded++
		}
		units = append(units, artifact)

		processed := i + 1
		progress := store.JobProgress{
			Percent:     processed * 100 / total,
			CurrentUnit: processed,
			TotalUnits:  total,
		}
		tracker.UpdateProgress(job.Id, progress)
		w.notifier.Publish(payload.RequesterId,
			events.NewJobProgress(job.Id, payload.RequesterId.String(), payload.ContentId.String(),
				progress.Percent, progress.CurrentUnit, progress.TotalUnits))
	}

	result := &store.JobResult{
		ContentId:   payload.ContentId,
		RequesterId: payload.RequesterId,
		Theme:       payload.Theme,
		Units:       units,
		GeneratedAt: time.Now(),
	}

	// The final unit already reported 100% above, so when the store rejects
	// the result the job reads as failed at full progress. State is the
	// authority; the percent only records how far execution got.
	if err := w.sink.Put(payload.ContentId, payload.RequesterId, result); err != nil {
		fail(fmt.Sprintf("failed to store job result: %v", err))
		return
	}

	tracker.Complete(job.Id, result)
	w.notifier.Publish(payload.RequesterId,
		events.NewJobCompleted(job.Id, payload.RequesterId.String(), payload.ContentId.String(), total, degraded))

	w.logger.Info("Worker", "Job completed", map[string]interface{}{
		"job_id":         job.Id,
		"total_units":    total,
		"degraded_units": degraded,
	})
}

// processUnit runs the stage pipeline for a single unit. Stage failures are
// recovered locally: the unit ships with a placeholder and a reason, and the
// job keeps going. A learner receiving some explanation beats receiving none.
func (w *Worker) processUnit(
	ctx context.Context,
	jobId string,
	payload store.JobPayload,
	unit store.GenerationUnit,
	idx int,
	sessionId string,
	profile stages.LearnerProfile,
) store.UnitArtifact {
	artifact := store.UnitArtifact{UnitId: unit.Id, Index: unit.Index}

	html, err := w.renderer.Render(ctx, unit, payload.Theme)
	if err != nil {
		w.logger.Error("Worker", "Render stage failed, using placeholder", map[string]interface{}{
			"job_id": jobId, "unit_id": unit.Id.String(), "error": err.Error(),
		})
		artifact.Html = placeholderHtml(unit)
		artifact.Degraded = true
		artifact.DegradedReason = err.Error()
	} else {
		artifact.Html = html
	}

	if payload.Flags.Narrate {
		audioRef, err := w.narrator.Narrate(ctx, narrationText(unit))
		if err != nil {
			w.logger.Error("Worker", "Narrate stage failed, shipping unit without audio", map[string]interface{}{
				"job_id": jobId, "unit_id": unit.Id.String(), "error": err.Error(),
			})
			artifact.Degraded = true
			artifact.DegradedReason = err.Error()
		} else {
			artifact.AudioRef = audioRef
		}
	}

	if payload.Flags.Teach && idx < teachUnitLimit {
		script, err := w.scripts.Generate(ctx, unit, profile)
		if err != nil {
			w.logger.Error("Worker", "Teaching stage failed, shipping unit without script", map[string]interface{}{
				"job_id": jobId, "unit_id": unit.Id.String(), "error": err.Error(),
			})
			artifact.Degraded = true
			artifact.DegradedReason = err.Error()
		} else {
			if sessionId != "" {
				if phrase := w.tutor.BuildContinuityPhrase(sessionId); phrase != "" {
					script.Script = phrase + " " + script.Script
				}
				w.tutor.SaveExplanation(sessionId, unit.Id, tutor.Explanation{
					Script:       script.Script,
					KeyPoints:    script.KeyPoints,
					Examples:     script.Examples,
					StudentLevel: profile.Grade,
				})
				current := idx + 1
				w.tutor.UpdateSession(sessionId, tutor.SessionUpdate{CurrentUnitIndex: &current})
			}
			artifact.TeachingScript = script.Script
			artifact.KeyPoints = script.KeyPoints
		}
	}

	return artifact
}

func narrationText(unit store.GenerationUnit) string {
	if unit.Notes != "" {
		return unit.Notes
	}
	return unit.Body
}

func placeholderHtml(unit store.GenerationUnit) string {
	return fmt.Sprintf(
		`<section class="slide slide-unavailable"><h2>%s</h2><p>This slide could not be generated. Please try again later.</p></section>`,
		unit.Title,
	)
}
