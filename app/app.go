package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	nethttp "net/http"

	"github.com/searchktools/loom-server/config"
	"github.com/searchktools/loom-server/core"
	"github.com/searchktools/loom-server/core/db"
	"github.com/searchktools/loom-server/core/http2"
	"github.com/searchktools/loom-server/core/middleware"
	"github.com/searchktools/loom-server/core/observability"
	"github.com/searchktools/loom-server/core/threads"
	"github.com/searchktools/loom-server/logging"
)

// App wires the thread service, database, engine and server together.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	svc     *threads.Service
	threads *observability.ThreadMonitor
	perf    *observability.PerformanceMonitor
	db      *db.DB
	engine  *core.Engine
	server  *http2.Server
}

// New creates an application instance. cfg must have been validated.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	a := &App{
		cfg:     cfg,
		log:     logger,
		threads: observability.NewThreadMonitor(),
		perf:    observability.NewPerformanceMonitor(),
	}

	svc, err := threads.New(threads.Options{
		Virtual:  cfg.VirtualThreads,
		Carriers: cfg.Carriers,
		Logger:   logging.Component(logger, "threads"),
		Observer: a.threads,
	})
	if err != nil {
		a.perf.Close()
		return nil, fmt.Errorf("thread service: %w", err)
	}
	a.svc = svc

	a.db, err = db.Open(ctx, db.Config{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logging.Component(logger, "db"))
	if err != nil {
		svc.Close()
		a.perf.Close()
		return nil, err
	}

	a.engine = core.NewEngine(svc,
		core.WithLogger(logging.Component(logger, "engine")),
		core.WithMiddleware(
			middleware.Recovery(logger),
			middleware.RequestID(),
			middleware.AccessLog(logging.Component(logger, "access")),
			middleware.Metrics(a.perf),
		),
	)
	a.registerRoutes()

	var tlsConfig *tls.Config
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("tls: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	a.server, err = http2.NewServer(http2.Config{
		Addr:         cfg.Addr(),
		Handler:      a.engine,
		TLSConfig:    tlsConfig,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logging.Component(logger, "server"),
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Handler returns the root HTTP handler.
func (a *App) Handler() nethttp.Handler {
	return a.engine
}

// Run listens on the configured port and serves until ctx is done, then
// shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.log.Info("server starting",
		"addr", ln.Addr().String(),
		"env", a.cfg.Env,
		"mode", a.svc.Mode(),
		"carriers", a.svc.Carriers().Size(),
	)

	errc := make(chan error, 1)
	go func() { errc <- a.server.Serve(ln) }()

	select {
	case err := <-errc:
		a.close()
		if errors.Is(err, http2.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutdown signal received", "cause", context.Cause(ctx))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	err := a.Shutdown(shutdownCtx)
	<-errc
	return err
}

// Shutdown stops the server, waits for in-flight requests and non-daemon
// threads, then releases the carriers and the database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := a.svc.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("threads: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("db: %w", err))
	}
	a.perf.Close()

	s := a.svc.Stats()
	a.log.Info("shutdown complete", "threads_created", s.Created, "carrier_high_water", s.Carriers.HighWater)
	return errors.Join(errs...)
}

func (a *App) close() {
	a.svc.Close()
	a.db.Close()
	a.perf.Close()
}
