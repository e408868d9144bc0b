package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"FinChart/internal/handler/stream"
	mid "FinChart/internal/middleware"
	"FinChart/pkg/config"
	xhttp "FinChart/pkg/http"
	pkgkafka "FinChart/pkg/kafka"
	applogger "FinChart/pkg/logger"
	"FinChart/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	hub        *stream.Hub
	pipeline   *mid.RefreshPipeline
	consumer   *pkgkafka.Consumer
	queue      *queue.RedisQueue
	closers    []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// AppOption attaches optional components.
type AppOption func(*App)

func WithHub(h *stream.Hub) AppOption {
	return func(a *App) { a.hub = h }
}

func WithPipeline(p *mid.RefreshPipeline) AppOption {
	return func(a *App) { a.pipeline = p }
}

// WithConsumer runs c for the app's lifetime. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer) AppOption {
	return func(a *App) { a.consumer = c }
}

// WithQueue runs the prerender queue workers for the app's lifetime.
func WithQueue(q *queue.RedisQueue) AppOption {
	return func(a *App) { a.queue = q }
}

// WithCloser registers a resource closed last on shutdown, in registration order.
func WithCloser(name string, c io.Closer) AppOption {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, opts ...AppOption) *App {
	a := &App{cfg: cfg, log: log, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until ctx is done or the process
// is interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start(ctx context.Context) error {
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.log.Error("prerender queue start error", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("candles consumer started", applogger.String("topic", a.cfg.Kafka.Topics.CandlesUpdated))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// shutdown stops intake first, then the sessions and the HTTP server, and
// closes infrastructure clients last.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.log.Info("shutting down...")
	var errs []error

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("prerender queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.log.Warn("stream hub close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	// flush aggregated logs while the producer is still open
	a.log.RemoveCollector()

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
