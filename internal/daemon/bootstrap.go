// SPDX-License-Identifier: MIT

// Package daemon wires the ad normalizer's components together and runs
// the HTTP servers until shutdown.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/ad-normalizer/internal/adserver"
	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/api"
	"github.com/ManuGH/ad-normalizer/internal/api/middleware"
	"github.com/ManuGH/ad-normalizer/internal/config"
	"github.com/ManuGH/ad-normalizer/internal/encore"
	"github.com/ManuGH/ad-normalizer/internal/health"
	"github.com/ManuGH/ad-normalizer/internal/kpi"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/normalize"
	"github.com/ManuGH/ad-normalizer/internal/store"
	"github.com/ManuGH/ad-normalizer/internal/telemetry"
)

// ServiceName identifies the service in logs, traces and KPI reports.
const ServiceName = "ad-normalizer"

// ConfigureLogging applies the configured level and identity to the global
// logger.
func ConfigureLogging(cfg config.AppConfig) {
	log.Configure(log.Config{
		Level:    cfg.LogLevel,
		Output:   os.Stdout,
		Service:  ServiceName,
		Version:  cfg.Version,
		Instance: cfg.InstanceID,
	})
}

// New builds every component from cfg. Nothing listens until Run.
func New(ctx context.Context, cfg config.AppConfig) (*App, error) {
	logger := log.WithComponent("daemon")
	logger.Info().
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Server.Port).
		Bool("jit_packaging", cfg.Encore.JITPackage).
		Str("key_field", cfg.Normalize.KeyField).
		Msg("starting ad normalizer")

	app := &App{cfg: cfg, logger: logger}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry initialization failed, continuing without tracing")
	} else {
		app.telemetry = tp
	}

	urls, err := cfg.ParsedURLs()
	if err != nil {
		return nil, fmt.Errorf("parse urls: %w", err)
	}

	st, err := store.Open(store.Config{
		URL:            cfg.Redis.URL,
		Cluster:        cfg.Redis.Cluster,
		LookupCacheTTL: cfg.Redis.LookupCacheTTL,
	}, log.WithComponent("store"))
	if err != nil {
		return nil, err
	}
	app.store = st

	if err := health.PerformStartupChecks(ctx, cfg, health.StartupOptions{
		Dependencies: []*health.PingChecker{health.NewPingChecker("redis", st.Ping)},
	}); err != nil {
		_ = st.Close()
		return nil, err
	}

	encoreClient, err := encore.NewClient(cfg.Encore.URL, encore.Options{
		Token:      cfg.Encore.Token,
		Timeout:    cfg.Encore.Timeout,
		MaxRetries: cfg.Encore.MaxRetries,
		SubmitRate: rate.Limit(cfg.Encore.SubmitRPS),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	settings := encore.Settings{
		Profile:        cfg.Encore.Profile,
		OutputBucket:   urls.OutputBucket,
		CallbackRoot:   urls.Root,
		AssetServer:    urls.AssetServer,
		JITPackaging:   cfg.Encore.JITPackage,
		PackagingQueue: cfg.Encore.PackagingQueue,
		InFlightTTL:    cfg.Normalize.InFlightTTL,
	}
	dispatcher, err := encore.NewDispatcher(encoreClient, st, settings)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	callbacks, err := encore.NewService(encoreClient, st, settings)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	adSource, err := adserver.NewClient(cfg.AdServer.URL, cfg.AdServer.Timeout, nil)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	app.kpi = kpi.NewCollector(cfg.KPI.PostURL, cfg.KPI.Interval)
	app.normalizer = normalize.New(normalize.Options{
		Keyer:           adxml.NewKeyer(cfg.Normalize.KeyField, cfg.KeyPattern),
		Lookup:          st,
		Dispatcher:      dispatcher,
		Blacklist:       st,
		Reporter:        app.kpi,
		DispatchTimeout: cfg.Normalize.DispatchTimeout,
	})

	app.health = health.NewManager(cfg.Version, cfg.InstanceID)
	app.health.RegisterChecker(health.NewPingChecker("redis", st.Ping))
	app.health.RegisterChecker(health.NewBreakerChecker(encoreClient.Breaker()))

	handler, err := api.NewHandler(api.Deps{
		Normalizer: app.normalizer,
		AdSource:   adSource,
		Store:      st,
		Callbacks:  callbacks,
		Health:     app.health,
		Stack: middleware.StackConfig{
			AllowedOrigins:        cfg.Server.CORSOrigins,
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
			TracingService:        tracingService(cfg),
			EnableLogging:         true,
			RateLimitRPS:          cfg.Server.RateLimitRPS,
			RateLimitBurst:        cfg.Server.RateLimitBurst,
			Compress:              true,
		},
		Debug: !cfg.Production(),
	})
	if err != nil {
		app.kpi.Stop()
		_ = st.Close()
		return nil, err
	}

	mgr, err := NewManager(Deps{
		Logger:          logger,
		APIAddr:         fmt.Sprintf(":%d", cfg.Server.Port),
		APIHandler:      handler,
		MetricsAddr:     cfg.Server.MetricsAddr,
		MetricsHandler:  promhttp.Handler(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		app.kpi.Stop()
		_ = st.Close()
		return nil, err
	}
	app.manager = mgr
	app.health.SetReadyGate(mgr.Serving)
	app.registerShutdownHooks()
	return app, nil
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return ServiceName
}

// registerShutdownHooks orders cleanup: hooks run LIFO, so in-flight
// dispatches drain first and the store closes last.
func (a *App) registerShutdownHooks() {
	if a.telemetry != nil {
		a.manager.RegisterShutdownHook("telemetry", a.telemetry.Shutdown)
	}
	a.manager.RegisterShutdownHook("store", func(context.Context) error {
		return a.store.Close()
	})
	a.manager.RegisterShutdownHook("kpi", func(context.Context) error {
		a.kpi.Stop()
		return nil
	})
	a.manager.RegisterShutdownHook("dispatch", func(ctx context.Context) error {
		return waitCtx(ctx, a.normalizer.Wait)
	})
}

// waitCtx runs wait and gives up when ctx ends first.
func waitCtx(ctx context.Context, wait func()) error {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight dispatches: %w", ctx.Err())
	}
}

// WaitForShutdown returns a context cancelled on SIGINT or SIGTERM.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Logger returns the daemon logger.
func (a *App) Logger() zerolog.Logger { return a.logger }
