package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"swing-backend/internal/bootstrap"
	"swing-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.DB.Close()

	log.Printf("worker started poll=%s max_attempts=%d", cfg.QueuePollInterval, cfg.QueueMaxAttempts)
	app.Worker.Run(ctx)
	log.Printf("worker stopped")
}
