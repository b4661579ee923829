package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/preston-bernstein/game-ingest-service/internal/app/games"
	"github.com/preston-bernstein/game-ingest-service/internal/config"
	httpserver "github.com/preston-bernstein/game-ingest-service/internal/http"
	"github.com/preston-bernstein/game-ingest-service/internal/http/handlers"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
	"github.com/preston-bernstein/game-ingest-service/internal/poller"
)

var metricsSetup = metrics.Setup

type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	httpServer    httpServer
	metricsServer httpServer
	poller        Poller
	runners       []Runner
	metricsStop   func(context.Context) error
	closers       []func() error
}

// New wires the ingestion pipeline, the live poller and the ops HTTP server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	return newServerWithMetrics(ctx, cfg, logger, nil)
}

func newServerWithMetrics(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*Server, error) {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}
	recorder, metricsHandler, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, recorder)

	c, err := buildComponents(ctx, cfg, logger, recorder)
	if err != nil {
		if metricsShutdown != nil {
			_ = metricsShutdown(context.Background())
		}
		return nil, err
	}

	handler := handlers.NewHandler(handlers.Deps{
		PollerStatus:  c.poller.Status,
		FetcherStatus: c.fetcher.Status,
		Tasks:         c.queue.Tasks,
		Plans:         c.syncer,
		Games:         games.NewService(c.store),
		Store:         c.store,
		Location:      c.planner.Location(),
		Logger:        logger,
	})
	// /metrics rides on the main listener only when no dedicated metrics server runs.
	if metricsSrv != nil {
		metricsHandler = nil
	}
	router := httpserver.NewRouter(handler, logger, recorder, metricsHandler)

	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		httpServer:    newNetHTTPServer(":"+cfg.Port, router),
		metricsServer: metricsSrv,
		poller:        c.poller,
		runners:       []Runner{c.syncer, c.watcher},
		metricsStop:   metricsShutdown,
		closers:       []func() error{c.store.Close},
	}, nil
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, httpSrv httpServer, plr Poller, runners ...Runner) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics.NewRecorder(),
		httpServer: httpSrv,
		poller:     plr,
		runners:    runners,
	}
}

// Run starts the long-lived loops, the poller and the HTTP server, then
// waits for ctx cancellation (or a failed loop) to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range s.runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}

	s.startMetrics()
	s.startServer(stop)
	if s.poller != nil {
		s.poller.Start(gctx)
	}

	<-gctx.Done()
	logging.Info(s.logger, "shutdown signal received")

	s.gracefulShutdown()

	// Runners may still be writing; the store closes only once they return.
	err := g.Wait()
	s.closeResources()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) startServer(stop context.CancelFunc) {
	launchServer("http", s.httpServer, s.logger, func(err error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.poller != nil {
		if err := s.poller.Stop(shutdownCtx); err != nil {
			logging.Error(s.logger, "failed to stop poller", err)
		}
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error(s.logger, "graceful shutdown failed", err)
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics server shutdown failed", "error", err)
		}
	}

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics shutdown failed", "error", err)
		}
	}
}

func (s *Server) closeResources() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			logging.Warn(s.logger, "close failed", "error", err)
		}
	}
	logging.Info(s.logger, "shutdown complete")
}

// buildMetrics returns the recorder plus either a dedicated metrics server
// (when a metrics port is configured) or the bare handler for the main router.
func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, http.Handler, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil, nil
	}

	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		logging.Warn(logger, "metrics setup failed, continuing without telemetry", "err", err)
		return metrics.NewRecorder(), nil, nil, nil
	}
	if rec == nil {
		rec = metrics.NewRecorder()
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled && recCfg.Port != "" && recCfg.Port != cfg.Port {
		metricsSrv = newNetHTTPServer(":"+recCfg.Port, handler)
	}

	return rec, handler, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		logging.Info(logger, "starting "+name+" server", slog.String("addr", srv.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn(logger, name+" server failed", "error", err)
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}

// Status reports the poller state.
func (s *Server) Status() poller.Status {
	if s.poller == nil {
		return poller.Status{}
	}
	return s.poller.Status()
}
