package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CryptoArchive/internal/usecase"
	"CryptoArchive/pkg/config"
	xhttp "CryptoArchive/pkg/http"
	pkgkafka "CryptoArchive/pkg/kafka"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	scheduler  *usecase.Scheduler
	queue      *queue.RedisQueue
}

// New creates a new App instance with all dependencies. consumer, scheduler and q may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	scheduler *usecase.Scheduler,
	q *queue.RedisQueue,
) *App {
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: httpServer,
		consumer:   consumer,
		handlers:   handlers,
		scheduler:  scheduler,
		queue:      q,
	}
}

// Scheduler exposes the task runner for one-shot invocations.
func (a *App) Scheduler() *usecase.Scheduler { return a.scheduler }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	return a.shutdown(ctx)
}

func (a *App) start() error {
	// Workers first so scheduled ticks find a consumer.
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.log.Error("queue start error", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.Strings("topics", a.consumer.Topics()))
	}

	if a.scheduler != nil && a.cfg.Scheduler.Enabled {
		a.scheduler.Start()
		a.log.Info("scheduler started",
			applogger.Duration("snapshot_every", a.cfg.Scheduler.SnapshotInterval),
			applogger.Duration("grade_every", a.cfg.Scheduler.GradeInterval),
			applogger.Bool("queued", a.queue != nil),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// shutdown stops intake first, then background work. Storage and producers are closed by
// the DI cleanup after Run returns.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("queue stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
