package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketWatch/internal/usecase"
	"MarketWatch/pkg/config"
	xhttp "MarketWatch/pkg/http"
	pkgkafka "MarketWatch/pkg/kafka"
	applogger "MarketWatch/pkg/logger"
)

// Runner is a long-lived loop that returns when ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

type worker struct {
	name string
	r    Runner
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	workers    []worker
	consumer   *pkgkafka.Consumer
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	ingestor *usecase.StreamIngestor,
	scanner *usecase.UniverseScanner,
	scheduler *usecase.AnalysisScheduler,
	headline *usecase.HeadlineReporter,
	consumer *pkgkafka.Consumer,
	handler xhttp.Handler,
) *App {
	return newApp(cfg, l, []worker{
		{name: "scanner", r: scanner},
		{name: "ingestor", r: ingestor},
		{name: "scheduler", r: scheduler},
		{name: "headline", r: headline},
	}, consumer, handler)
}

func newApp(cfg *config.Config, l *applogger.Logger, workers []worker, consumer *pkgkafka.Consumer, handler xhttp.Handler, opts ...xhttp.ServerOption) *App {
	if l == nil {
		l = applogger.Nop()
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts = append([]xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(!cfg.Server.DisableCORS),
	}, opts...)
	srv := xhttp.NewServer(handler, l, opts...)
	return &App{
		cfg:        cfg,
		log:        l.With("app"),
		workers:    workers,
		consumer:   consumer,
		httpServer: srv,
	}
}

// Run starts every loop and the HTTP server, then blocks until ctx is
// cancelled or the server fails. All loops have returned when Run does.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, w := range a.workers {
		wg.Add(1)
		go func(w worker) {
			defer wg.Done()
			if err := w.r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("loop stopped", applogger.String("loop", w.name), applogger.Error(err))
			}
		}(w)
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			cancel()
			wg.Wait()
			return err
		}
		a.log.Info("kafka consumer started")
	}

	if err := a.httpServer.Start(); err != nil {
		cancel()
		wg.Wait()
		return err
	}
	a.log.Info("market watch started", applogger.Int("port", a.cfg.Server.Port))

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Err():
	}

	cancel()
	a.shutdown()
	wg.Wait()
	a.log.Info("shutdown complete")
	return runErr
}

// shutdown stops the HTTP server and the consumer. Infrastructure clients are
// closed by the injector's cleanup.
func (a *App) shutdown() {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
}
