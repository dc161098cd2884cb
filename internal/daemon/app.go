// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/ad-normalizer/internal/config"
	"github.com/ManuGH/ad-normalizer/internal/health"
	"github.com/ManuGH/ad-normalizer/internal/kpi"
	"github.com/ManuGH/ad-normalizer/internal/normalize"
	"github.com/ManuGH/ad-normalizer/internal/store"
	"github.com/ManuGH/ad-normalizer/internal/telemetry"
)

// App owns the long-lived runtime: servers, background collectors and the
// components they share.
type App struct {
	cfg    config.AppConfig
	logger zerolog.Logger

	manager    Manager
	store      *store.RedisStore
	normalizer *normalize.Normalizer
	kpi        *kpi.Collector
	health     *health.Manager
	telemetry  *telemetry.Provider
}

// Run blocks until ctx is cancelled or a server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.manager.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Str("event", "daemon.stopping").Msg("stopping; readiness now failing")
		return nil
	})
	return g.Wait()
}
