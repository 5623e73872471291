package main

import (
	"context"
	"log"

	"ai-lessoncraft-be/internal/bootstrap"
	"ai-lessoncraft-be/internal/config"
	"ai-lessoncraft-be/internal/server"
	"ai-lessoncraft-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start the queue consumer
	if err := container.Queue.Start(context.Background()); err != nil {
		log.Panicf("Unable to start job queue: %v", err)
	}
	// Defers unwind LIFO: stop intake first, then wait out in-flight jobs,
	// and only then close the notifier they publish into.
	defer container.Notifier.Close()
	defer container.Worker.Stop()
	defer container.Queue.Close()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
