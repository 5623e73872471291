package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/pkg/cache"
	"ai-lessoncraft-be/pkg/notifier"
	"ai-lessoncraft-be/pkg/pipeline"
	"ai-lessoncraft-be/pkg/queue"
	"ai-lessoncraft-be/pkg/stages"
	"ai-lessoncraft-be/pkg/store"
	"ai-lessoncraft-be/pkg/tutor"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Local stage stubs so the simulation runs without the renderer, narrator
// and tutor services being up.

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, unit store.GenerationUnit, theme string) (string, error) {
	time.Sleep(50 * time.Millisecond)
	return fmt.Sprintf("<section><h1>%s</h1><p>%s</p></section>", unit.Title, unit.Body), nil
}

type stubNarrator struct{}

func (stubNarrator) Narrate(ctx context.Context, text string) (string, error) {
	time.Sleep(30 * time.Millisecond)
	return "audio://" + uuid.NewString(), nil
}

type stubScripts struct{}

func (stubScripts) Generate(ctx context.Context, unit store.GenerationUnit, profile stages.LearnerProfile) (*stages.TeachingScript, error) {
	time.Sleep(30 * time.Millisecond)
	return &stages.TeachingScript{
		Script:    fmt.Sprintf("Alright %s, let's look at %s.", profile.Name, unit.Title),
		KeyPoints: []string{unit.Title + " basics"},
		Examples:  []string{"example for " + unit.Title},
	}, nil
}

// consoleDelivery prints notifier events instead of pushing them to sockets.
type consoleDelivery struct{}

func (consoleDelivery) Push(requesterID uuid.UUID, payload []byte) {
	color.Magenta("  [event → %s] %s", requesterID.String()[:8], string(payload))
}

func main() {
	color.Cyan("🚀 Generation Pipeline Simulation (in-process backend)\n")

	sysLogger := logger.NewIsolatedLogger("logs/simulation.log")

	resultCache := cache.NewResultCache(10*time.Minute, time.Minute)
	tutorMgr := tutor.NewManager(30*time.Minute, 5*time.Minute)
	notif := notifier.NewNotifier(consoleDelivery{}, nil, sysLogger, 64)
	defer notif.Close()

	worker := pipeline.NewWorker(
		pipeline.Config{MaxConcurrent: 2, RateLimit: 10, RateWindow: time.Minute},
		stubRenderer{},
		stubNarrator{},
		stubScripts{},
		resultCache,
		tutorMgr,
		notif,
		sysLogger,
	)
	defer worker.Stop()

	q := queue.NewChannelQueue("simulation-jobs", 100*time.Millisecond, worker, sysLogger)
	defer q.Close()

	if err := q.Start(context.Background()); err != nil {
		color.Red("Failed to start queue: %v", err)
		os.Exit(1)
	}

	requesterId := uuid.New()
	contentId := uuid.New()

	units := make([]store.GenerationUnit, 0, 5)
	topics := []string{"Fractions", "Decimals", "Percentages", "Ratios", "Proportions"}
	for i, topic := range topics {
		units = append(units, store.GenerationUnit{
			Id:    uuid.New(),
			Index: i,
			Title: topic,
			Body:  "An introduction to " + topic + " for young learners.",
		})
	}

	payload := store.JobPayload{
		ContentId:    contentId,
		RequesterId:  requesterId,
		Units:        units,
		Flags:        store.JobFlags{Narrate: true, Teach: true},
		Theme:        "chalkboard",
		LearnerGrade: "5",
		LearnerName:  "Sam",
	}

	jobId, err := q.Submit(context.Background(), payload)
	if err != nil {
		color.Red("Submit failed: %v", err)
		os.Exit(1)
	}
	color.Yellow("Submitted job %s (%d units, narrate+teach)", jobId, len(units))

	// Poll until terminal.
	for {
		time.Sleep(200 * time.Millisecond)
		view, err := q.Status(context.Background(), jobId)
		if err != nil {
			color.Red("Status failed: %v", err)
			os.Exit(1)
		}
		color.White("  status=%s progress=%d%% (%d/%d)",
			view.State, view.Progress.Percent, view.Progress.CurrentUnit, view.Progress.TotalUnits)
		if view.State == store.StatusCompleted || view.State == store.StatusFailed {
			break
		}
	}

	result, err := q.Result(context.Background(), jobId)
	if err != nil {
		color.Red("Result failed: %v", err)
		os.Exit(1)
	}

	color.Green("\n✅ Job finished with %d artifacts", len(result.Units))
	for _, a := range result.Units {
		status := "ok"
		if a.Degraded {
			status = "degraded: " + a.DegradedReason
		}
		fmt.Printf("  unit %d: html=%d bytes audio=%q script=%d chars [%s]\n",
			a.Index, len(a.Html), a.AudioRef, len(a.TeachingScript), status)
	}

	// The same result must be readable through the dual-key cache.
	cached, ok := resultCache.Get(contentId, requesterId)
	if !ok {
		color.Red("Result cache miss for content %s", contentId)
		os.Exit(1)
	}
	b, _ := json.Marshal(cached.Units[0])
	color.Green("Cache hit, first artifact: %s", truncate(string(b), 120))

	// Tutoring memory should carry the taught units.
	taught := 0
	for _, u := range units {
		if _, found := tutorMgr.GetLastExplanation(contentId, u.Id); found {
			taught++
		}
	}
	color.Green("Tutoring memory holds %d explanations", taught)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
