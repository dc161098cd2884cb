// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ad-normalizer/internal/config"
	"github.com/ManuGH/ad-normalizer/internal/log"
)

// StartupOptions tunes PerformStartupChecks.
type StartupOptions struct {
	// Dependencies are pinged until they answer or MaxWait elapses.
	Dependencies []*PingChecker
	MaxWait      time.Duration
}

// PerformStartupChecks validates the runtime configuration beyond syntax and
// waits for required dependencies before the server starts listening.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig, opts StartupOptions) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running startup checks")

	if err := checkListeners(logger, cfg); err != nil {
		return fmt.Errorf("listener check failed: %w", err)
	}
	checkCallbackURL(logger, cfg)

	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	for _, dep := range opts.Dependencies {
		if err := waitFor(ctx, logger, dep, maxWait); err != nil {
			return fmt.Errorf("dependency %s unavailable: %w", dep.Name(), err)
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListeners(logger zerolog.Logger, cfg config.AppConfig) error {
	_, metricsPort, err := net.SplitHostPort(cfg.Server.MetricsAddr)
	if err != nil {
		return fmt.Errorf("invalid metrics address %q: %w", cfg.Server.MetricsAddr, err)
	}
	if metricsPort == strconv.Itoa(cfg.Server.Port) {
		return fmt.Errorf("metrics address %q collides with API port %d", cfg.Server.MetricsAddr, cfg.Server.Port)
	}
	logger.Debug().
		Int("port", cfg.Server.Port).
		Str("metrics_addr", cfg.Server.MetricsAddr).
		Msg("listener configuration valid")
	return nil
}

// checkCallbackURL warns when the transcoder would be told to call back a
// loopback address it most likely cannot reach.
func checkCallbackURL(logger zerolog.Logger, cfg config.AppConfig) {
	u, err := url.Parse(cfg.Server.RootURL)
	if err != nil {
		return
	}
	host := u.Hostname()
	if host == "localhost" {
		logger.Warn().Str("root_url", cfg.Server.RootURL).Msg("ROOT_URL points to localhost; transcoder callbacks may not arrive")
		return
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		logger.Warn().Str("root_url", cfg.Server.RootURL).Msg("ROOT_URL is a loopback address; transcoder callbacks may not arrive")
	}
}

func waitFor(ctx context.Context, logger zerolog.Logger, dep *PingChecker, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		pctx, cancel := context.WithTimeout(ctx, DefaultCheckTimeout)
		defer cancel()
		return struct{}{}, dep.ping(pctx)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(maxWait),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().Err(err).Str("dependency", dep.Name()).Dur("retry_in", next).Msg("dependency not ready")
		}),
	)
	if err == nil {
		logger.Info().Str("dependency", dep.Name()).Msg("dependency reachable")
	}
	return err
}
