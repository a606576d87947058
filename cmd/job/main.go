// Command job runs one archive task and exits. Intended for cron.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CryptoArchive/internal/di"
	"CryptoArchive/internal/usecase"
	"CryptoArchive/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	task := flag.String("task", "snapshot", "task to run: snapshot or grade")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	sched, cleanup, err := di.InitializeScheduler(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = sched.RunTask(ctx, *task)
	stop()
	cleanup()

	switch {
	case errors.Is(err, usecase.ErrTaskLocked):
		log.Printf("task %s skipped: already running elsewhere", *task)
	case err != nil:
		log.Printf("task %s failed: %v", *task, err)
		os.Exit(1)
	}
}
