package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/storepulse/internal/alert"
	"github.com/onnwee/storepulse/internal/api"
	"github.com/onnwee/storepulse/internal/config"
	"github.com/onnwee/storepulse/internal/dashboard"
	"github.com/onnwee/storepulse/internal/health"
	"github.com/onnwee/storepulse/internal/middleware"
	"github.com/onnwee/storepulse/internal/source"
	"github.com/onnwee/storepulse/internal/stats"
	"github.com/onnwee/storepulse/internal/tracing"
)

const (
	serviceName = "storepulse-api"

	shutdownTimeout          = 10 * time.Second
	startupPingTimeout       = 5 * time.Second
	rateLimitCleanupInterval = 5 * time.Minute

	dbMaxOpenConns    = 10
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 30 * time.Minute
)

// app is the wired API: its handler chain plus everything that must be
// released on shutdown.
type app struct {
	handler         http.Handler
	inconsistencies *stats.Inconsistencies
	closers         []func(context.Context) error
}

// newApp builds every component from cfg. Background work is bound to ctx.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{inconsistencies: stats.NewInconsistencies()}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	dashboardMetrics := dashboard.NewMetrics()
	sourceMetrics := source.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		httpMetrics.Register, dashboardMetrics.Register, sourceMetrics.Register,
	} {
		if err := register(registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	// Tracing
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		StoreID:        cfg.StoreID,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	// Event source and alert store
	healthCfg := api.HealthHandlersConfig{Logger: logger}
	var (
		src  source.EventSource
		repo alert.Repository
	)
	switch cfg.DataSource {
	case config.DataSourcePostgres:
		db, err := openDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			_ = a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })

		pg := source.NewPostgresSource(db, cfg.StoreID, loc, logger,
			source.WithMetrics(sourceMetrics),
			source.WithInconsistencies(a.inconsistencies),
		)
		breaker := source.NewBreakerSource(pg, source.DefaultBreakerConfig(), logger, sourceMetrics)
		src = breaker
		repo = alert.NewPostgresRepository(db, cfg.StoreID, logger)
		healthCfg.DBChecker = health.NewDBChecker(db)
		healthCfg.SourceChecker = health.NewBreakerChecker(breaker)

	default:
		alerts := alert.NewInMemoryRepository()
		if err := alert.SeedDemo(alerts, time.Now()); err != nil {
			_ = a.close(ctx)
			return nil, fmt.Errorf("failed to seed demo alerts: %w", err)
		}
		src = source.NewDemoSource(loc, source.DefaultDemoRefresh, nil)
		repo = alerts
		logger.Warn("serving in-memory demo data", "data_source", cfg.DataSource)
	}

	// Rate limiting
	var store middleware.RateLimitStore
	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(cfg.RedisURL)
		if err != nil {
			_ = a.close(ctx)
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store = middleware.NewRedisRateLimitStore(client).WithMetrics(httpMetrics).WithLogger(logger)
		healthCfg.RedisChecker = health.NewRedisChecker(client)
	} else {
		mem := middleware.NewInMemoryRateLimitStore()
		go mem.RunCleanup(ctx, rateLimitCleanupInterval)
		store = mem
	}

	keyFunc := middleware.RemoteAddrKeyFunc()
	if cfg.TrustedProxies {
		keyFunc = middleware.IPKeyFunc()
	}
	globalCfg := middleware.DefaultGlobalLimit()
	globalCfg.RequestsPerWindow = cfg.RateLimitRPM
	writeCfg := middleware.DefaultAlertWriteLimit()
	writeCfg.RequestsPerWindow = cfg.AlertWriteRPM
	globalLimit := middleware.RateLimiter(store, globalCfg,
		middleware.PrefixedKeyFunc(globalCfg.Scope, keyFunc), httpMetrics)
	alertWriteLimit := middleware.RateLimiter(store, writeCfg,
		middleware.PrefixedKeyFunc(writeCfg.Scope, keyFunc), httpMetrics)

	// Handlers
	svc := dashboard.NewService(src, dashboard.Config{
		QueryTimeout:           cfg.QueryTimeout,
		QueueLookback:          cfg.QueueLookback,
		DemographicsWindowDays: cfg.DemographicsWindowDays,
		QueueZones:             cfg.QueueZones,
		Location:               loc,
	},
		dashboard.WithLogger(logger),
		dashboard.WithMetrics(dashboardMetrics),
		dashboard.WithInconsistencies(a.inconsistencies),
	)

	mux := api.NewRouter(api.RouterConfig{
		Dashboard:       api.NewDashboardHandlers(svc),
		Alerts:          api.NewAlertHandlers(repo, logger),
		Health:          api.NewHealthHandlers(healthCfg),
		Metrics:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		AlertWriteLimit: alertWriteLimit,
	})

	profiling := middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
		Logger:      logger,
	}
	mux.Handle("GET /debug/profiling", middleware.ProfilingStatus(profiling))

	// Middleware, outermost first:
	// RequestID -> CORS -> Tracing -> Logging -> HTTPMetrics -> RateLimit(/api) -> Profiling -> mux
	// Rejections by the limiter are still logged and counted.
	var handler http.Handler = mux
	handler = middleware.Profiling(profiling)(handler)
	handler = apiOnly(globalLimit, handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	}
	handler = middleware.RequestID(handler)

	a.handler = handler
	return a, nil
}

// apiOnly applies mw to /api requests. Probes and scrapes bypass it.
func apiOnly(mw func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := mw(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// openDB opens the Postgres pool. An unreachable database is logged but not
// fatal: aggregates fall back and readiness reports the outage.
func openDB(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("database unreachable at startup", "error", err)
	}
	return db, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// run serves the API on cfg.Port until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		_ = a.close(ctx)
		return fmt.Errorf("failed to listen: %w", err)
	}
	return serve(ctx, ln, a, logger)
}

// serve runs the HTTP server on ln and shuts it down gracefully once ctx is
// done, then releases the app and logs the data inconsistency summary.
func serve(ctx context.Context, ln net.Listener, a *app, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String(), "version", version)
		errCh <- server.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := a.close(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}

	a.inconsistencies.LogSummary(logger)
	logger.Info("server stopped")
	return serveErr
}
