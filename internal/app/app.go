package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neogan74/droppy-api/internal/config"
	"github.com/neogan74/droppy-api/internal/handlers"
	"github.com/neogan74/droppy-api/internal/logger"
	"github.com/neogan74/droppy-api/internal/metrics"
	"github.com/neogan74/droppy-api/internal/middleware"
	"github.com/neogan74/droppy-api/internal/persistence"
	"github.com/neogan74/droppy-api/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Builder wires droppy-api dependencies.
type Builder struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	publicApp      *fiber.App
	adminApp       *fiber.App
	engine         persistence.Engine
	sweeper        persistence.Sweeper
	tracerProvider *telemetry.TracerProvider
	closers        []func()
}

// NewBuilder creates a new application builder.
func NewBuilder(cfg *config.Config, version string) *Builder {
	return &Builder{cfg: cfg, version: version}
}

// Build assembles the application components.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	b.initLogger()
	b.recordStartupMetrics()
	b.initTracing(ctx)

	if err := b.initPersistence(); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	b.initPublic()
	b.initAdmin()

	return &App{
		cfg:            b.cfg,
		version:        b.version,
		logger:         b.logger,
		publicApp:      b.publicApp,
		adminApp:       b.adminApp,
		sweeper:        b.sweeper,
		tracerProvider: b.tracerProvider,
		closers:        b.closers,
	}, nil
}

func (b *Builder) initLogger() {
	b.logger = logger.NewFromConfig(b.cfg.Log.Level, b.cfg.Log.Format)
	logger.SetDefault(b.logger)
}

func (b *Builder) recordStartupMetrics() {
	metrics.BuildInfo.WithLabelValues(b.version, runtime.Version()).Set(1)

	b.logger.Info("Starting droppy-api",
		logger.String("version", b.version),
		logger.String("address", b.cfg.Address()),
		logger.String("resource_path", b.cfg.Dry.Path),
		logger.Duration("record_ttl", b.cfg.Dry.RecordTTL),
		logger.String("log_level", b.cfg.Log.Level),
		logger.String("log_format", b.cfg.Log.Format),
		logger.String("store_type", b.cfg.Store.Type),
	)
}

func (b *Builder) initTracing(ctx context.Context) {
	tracingCfg := telemetry.TracingConfig{
		Enabled:        b.cfg.Tracing.Enabled,
		Endpoint:       b.cfg.Tracing.Endpoint,
		ServiceName:    b.cfg.Tracing.ServiceName,
		ServiceVersion: b.cfg.Tracing.ServiceVersion,
		Environment:    b.cfg.Tracing.Environment,
		SamplingRatio:  b.cfg.Tracing.SamplingRatio,
		InsecureConn:   b.cfg.Tracing.InsecureConn,
	}

	provider, err := telemetry.InitTracing(ctx, tracingCfg)
	if err != nil {
		b.logger.Error("Failed to initialize tracing", logger.Error(err))
		return
	}

	if provider.Enabled() {
		b.logger.Info("OpenTelemetry tracing initialized",
			logger.String("endpoint", b.cfg.Tracing.Endpoint),
			logger.String("service_name", b.cfg.Tracing.ServiceName),
		)

		b.addCloser(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				b.logger.Error("Failed to shutdown tracer provider", logger.Error(err))
			}
		})
	}

	b.tracerProvider = provider
}

func (b *Builder) initPersistence() error {
	engine, err := persistence.NewEngine(persistence.Config{
		Type:       b.cfg.Store.Type,
		DataDir:    b.cfg.Store.DataDir,
		SyncWrites: b.cfg.Store.SyncWrites,
	}, b.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	// Engines without native expiry drop stale records on a timer.
	if sweeper, ok := engine.(persistence.Sweeper); ok {
		b.sweeper = sweeper
	}

	b.engine = persistence.Instrument(engine, b.storeType())
	b.addCloser(func() {
		if err := engine.Close(); err != nil {
			b.logger.Error("Failed to close store", logger.Error(err))
		}
	})

	return nil
}

func (b *Builder) storeType() string {
	if b.cfg.Store.Type == "" {
		return "memory"
	}
	return b.cfg.Store.Type
}

// initPublic builds the listener that serves the dry resource. Every
// request reaches the dry handler, which owns path matching.
func (b *Builder) initPublic() {
	b.publicApp = fiber.New(fiber.Config{
		AppName:               "droppy-api",
		BodyLimit:             b.cfg.Server.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})

	b.publicApp.Use(middleware.CORS())
	if b.cfg.Tracing.Enabled {
		b.publicApp.Use(middleware.TracingMiddleware(b.cfg.Tracing.ServiceName, b.cfg.Dry.Path))
	}
	b.publicApp.Use(middleware.MetricsMiddleware(b.cfg.Dry.Path))
	b.publicApp.Use(middleware.RequestLogging(b.logger))
	b.publicApp.Use(recover.New())

	dryHandler := handlers.NewDryHandler(b.engine, b.cfg.Dry.Path, b.cfg.Dry.RecordTTL)
	b.publicApp.Use(dryHandler.Handle)
}

// initAdmin builds the metrics and health listener
func (b *Builder) initAdmin() {
	if !b.cfg.Admin.Enabled {
		return
	}

	b.adminApp = fiber.New(fiber.Config{
		AppName:               "droppy-api-admin",
		DisableStartupMessage: true,
	})
	b.adminApp.Use(recover.New())

	healthHandler := handlers.NewHealthHandler(b.engine, b.storeType(), b.cfg.Dry.RecordTTL, b.version)

	b.adminApp.Get("/health", healthHandler.Check)
	b.adminApp.Get("/health/live", healthHandler.Liveness)
	b.adminApp.Get("/health/ready", healthHandler.Readiness)
	b.adminApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (b *Builder) addCloser(closer func()) {
	b.closers = append(b.closers, closer)
}

func (b *Builder) cleanupOnError() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// App represents a configured droppy-api ready to run.
type App struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	publicApp      *fiber.App
	adminApp       *fiber.App
	sweeper        persistence.Sweeper
	tracerProvider *telemetry.TracerProvider
	closers        []func()
	backgroundStop []func()
}

// Run starts the listeners and handles graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.startBackgroundTasks(ctx)

	serverErr := make(chan error, 2)

	a.logger.Info("Server starting",
		logger.String("address", a.cfg.Address()),
		logger.Bool("tls", a.cfg.Server.TLS.Enabled))
	go func() {
		if a.cfg.Server.TLS.Enabled {
			serverErr <- a.publicApp.ListenTLS(a.cfg.Address(), a.cfg.Server.TLS.CertFile, a.cfg.Server.TLS.KeyFile)
		} else {
			serverErr <- a.publicApp.Listen(a.cfg.Address())
		}
	}()

	if a.adminApp != nil {
		a.logger.Info("Admin server starting", logger.String("address", a.cfg.AdminAddress()))
		go func() {
			serverErr <- a.adminApp.Listen(a.cfg.AdminAddress())
		}()
	}

	var runErr error
	select {
	case err := <-serverErr:
		if err == nil {
			err = errors.New("listener stopped unexpectedly")
		}
		a.logger.Error("Failed to start server", logger.Error(err))
		runErr = err
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
	}

	a.stopBackgroundTasks()
	a.shutdownServers()
	a.runClosers()

	if runErr != nil {
		return runErr
	}

	a.logger.Info("Server exited gracefully")
	return nil
}

func (a *App) shutdownServers() {
	if err := a.publicApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		a.logger.Error("Server forced to shutdown", logger.Error(err))
	}
	if a.adminApp != nil {
		if err := a.adminApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
			a.logger.Error("Admin server forced to shutdown", logger.Error(err))
		}
	}
}

func (a *App) startBackgroundTasks(ctx context.Context) {
	if a.sweeper != nil && a.cfg.Store.SweepInterval > 0 {
		stop := a.startSweeper(ctx)
		a.backgroundStop = append(a.backgroundStop, stop)
	}
}

func (a *App) stopBackgroundTasks() {
	for i := len(a.backgroundStop) - 1; i >= 0; i-- {
		a.backgroundStop[i]()
	}
	a.backgroundStop = nil
}

func (a *App) startSweeper(ctx context.Context) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.cfg.Store.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.sweepOnce(ctx)
			case <-stop:
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

func (a *App) sweepOnce(ctx context.Context) {
	count, err := a.sweeper.Sweep(ctx)
	if err != nil {
		a.logger.Error("Failed to sweep expired records", logger.Error(err))
		return
	}
	if count > 0 {
		a.logger.Info("Swept expired records", logger.Int("count", count))
		metrics.StoreExpiredRecordsTotal.Add(float64(count))
	}
}

func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
