package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/infra/config"
	"github.com/oaracle/oaracle/internal/infra/scorequeue"
	"github.com/oaracle/oaracle/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// App encapsulates the HTTP server, the score worker and the refresh scheduler.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	queue     scorequeue.HandlerQueue
	recorder  *conditions.Recorder
	publisher conditions.ScorePublisher
	scheduler *scheduler.Scheduler
}

// NewApp is used by Wire to build the runnable app.
func NewApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	queue scorequeue.HandlerQueue,
	recorder *conditions.Recorder,
	publisher conditions.ScorePublisher,
	sched *scheduler.Scheduler,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With("component", "bootstrap"),
		server:    server,
		queue:     queue,
		recorder:  recorder,
		publisher: publisher,
		scheduler: sched,
	}
}

// Run starts the HTTP server and background workers and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.queue.SetHandler(a.recorder.Record)

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(); err != nil {
			return err
		}
		a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval, "locations", len(a.scheduler.Locations()))
		a.watchConfig(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.shutdown()
	case err := <-errCh:
		a.stopWorkers()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.server.Shutdown(shutdownCtx)
	a.stopWorkers()
	return err
}

// stopWorkers stops the scheduler first so no new scores are queued, then
// drains the queue before closing the publisher.
func (a *App) stopWorkers() {
	if a.cfg.Scheduler.Enabled {
		a.scheduler.Stop()
	}
	a.queue.Close()
	if closer, ok := a.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("close score publisher", "error", err)
		}
	}
	a.logger.Info("workers stopped")
}

func (a *App) watchConfig(ctx context.Context) {
	if a.cfg.Path == "" {
		return
	}
	go func() {
		err := config.Watch(ctx, a.cfg.Path, a.logger, func(next *config.Config) {
			a.scheduler.SetLocations(next.Scheduler.Locations)
		})
		if err != nil {
			a.logger.Warn("config watch disabled", "path", a.cfg.Path, "error", err)
		}
	}()
}
