package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-lessoncraft-be/internal/config"
	"ai-lessoncraft-be/internal/controller"
	"ai-lessoncraft-be/internal/handler"
	"ai-lessoncraft-be/internal/pkg/logger"
	"ai-lessoncraft-be/internal/service"
	"ai-lessoncraft-be/internal/websocket"
	"ai-lessoncraft-be/pkg/cache"
	"ai-lessoncraft-be/pkg/notifier"
	"ai-lessoncraft-be/pkg/pipeline"
	"ai-lessoncraft-be/pkg/queue"
	"ai-lessoncraft-be/pkg/stages"
	"ai-lessoncraft-be/pkg/tutor"

	pktNats "ai-lessoncraft-be/pkg/nats"

	"github.com/redis/go-redis/v9"
)

const notifierBufferSize = 256

type Container struct {
	// Controllers
	GenerationController controller.IGenerationController
	TutoringController   controller.ITutoringController

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	// Background components (exposed for main.go lifecycle control)
	Queue    queue.Queue
	Worker   *pipeline.Worker
	Notifier *notifier.Notifier
	TutorMgr *tutor.Manager
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Infrastructure
	// NATS (durable event stream; nil publisher degrades to ws-only delivery)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Pipeline components
	notif := notifier.NewNotifier(wsHub, eventPublisherOrNil(natsPub), wsLogger, notifierBufferSize)

	resultCache := cache.NewResultCache(
		time.Duration(cfg.Cache.ResultTTLMinutes)*time.Minute,
		time.Duration(cfg.Cache.CleanupIntervalMins)*time.Minute,
	)

	tutorMgr := tutor.NewManager(
		time.Duration(cfg.Tutoring.SessionMaxAgeMinutes)*time.Minute,
		time.Duration(cfg.Tutoring.CleanupIntervalMins)*time.Minute,
	)

	// Periodic sweep so stale tutoring state is reclaimed even without the
	// explicit cleanup endpoint being called.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Tutoring.CleanupIntervalMins) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if removed := tutorMgr.CleanupOldMemory(cfg.Tutoring.SessionMaxAgeMinutes); removed > 0 {
				sysLogger.Info("Bootstrap", "Tutoring memory sweep", map[string]interface{}{"removed": removed})
			}
		}
	}()

	worker := pipeline.NewWorker(
		pipeline.Config{
			MaxConcurrent: cfg.Queue.MaxConcurrent,
			RateLimit:     cfg.Queue.RateLimit,
			RateWindow:    cfg.Queue.RateWindow(),
		},
		stages.NewHTTPRenderer(cfg.Stages.RendererBaseURL),
		stages.NewHTTPNarrator(cfg.Stages.NarratorBaseURL),
		stages.NewHTTPScriptGenerator(cfg.Stages.TutorBaseURL),
		resultCache,
		tutorMgr,
		notif,
		sysLogger,
	)

	// 4. Queue backend (broker when reachable, in-process otherwise)
	jobQueue := queue.Select(cfg.App.NatsURL, cfg.Queue.ForceInProcess, cfg.Queue.SubmitDelay(), worker, sysLogger)

	// 5. Services
	generationService := service.NewGenerationService(jobQueue, resultCache)
	tutoringService := service.NewTutoringService(tutorMgr)

	// Durable event log (worker)
	if natsSub != nil {
		eventLog := service.NewEventLogService(natsSub, sysLogger)
		if err := eventLog.Start(); err != nil {
			log.Printf("[WARN] Failed to start event log consumer: %v", err)
		}
	}

	// Handler
	notifHandler := handler.NewNotificationHandler(wsHub, wsLogger)

	return &Container{
		GenerationController: controller.NewGenerationController(generationService),
		TutoringController:   controller.NewTutoringController(tutoringService),
		NotificationHandler:  notifHandler,
		WebSocketHub:         wsHub,
		Queue:                jobQueue,
		Worker:               worker,
		Notifier:             notif,
		TutorMgr:             tutorMgr,
	}
}

// eventPublisherOrNil keeps the notifier's publisher a typed nil-free
// interface: a nil *Publisher inside a non-nil interface would dodge the
// notifier's nil check.
func eventPublisherOrNil(pub *pktNats.Publisher) notifier.EventPublisher {
	if pub == nil {
		return nil
	}
	return pub
}
