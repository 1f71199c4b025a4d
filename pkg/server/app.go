package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "HistFill/internal/domain/repository"
	"HistFill/pkg/config"
	xhttp "HistFill/pkg/http"
	applogger "HistFill/pkg/logger"
	"HistFill/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg     *config.Config
	logger  *applogger.Logger
	handler xhttp.Handler
	queue   *queue.RedisQueue
	events  drepo.Events
	archive drepo.Archive

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	q *queue.RedisQueue,
	events drepo.Events,
	archive drepo.Archive,
) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		queue:   q,
		events:  events,
		archive: archive,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.queue.Start(); err != nil {
		a.logger.Error("queue start", applogger.Error(err))
		return err
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.logger, 2*time.Second),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start", applogger.Error(err))
		return err
	}
	a.logger.Info("listening",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops the HTTP server first so no new work arrives, then drains
// the queue workers and closes the infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", applogger.Error(err))
	}
	if err := a.queue.Stop(shutdownCtx); err != nil {
		a.logger.Warn("queue stop", applogger.Error(err))
	}
	if err := a.events.Close(); err != nil {
		a.logger.Warn("events close", applogger.Error(err))
	}
	if err := a.archive.Close(); err != nil {
		a.logger.Warn("archive close", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
