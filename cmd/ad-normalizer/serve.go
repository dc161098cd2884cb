// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/ManuGH/ad-normalizer/internal/daemon"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/version"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Safe defaults until the config is known.
			log.Configure(log.Config{
				Level:   "info",
				Service: daemon.ServiceName,
				Version: version.Version,
			})

			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			daemon.ConfigureLogging(cfg)

			ctx, stop := daemon.WaitForShutdown()
			defer stop()

			app, err := daemon.New(ctx, cfg)
			if err != nil {
				logger := log.WithComponent("daemon")
				logger.Error().Err(err).Msg("startup failed")
				return err
			}
			return app.Run(ctx)
		},
	}
}
