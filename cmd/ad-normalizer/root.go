// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/ad-normalizer/internal/config"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/store"
	"github.com/ManuGH/ad-normalizer/internal/version"
)

// commandContext is shared by every subcommand. Config is resolved lazily
// so that commands like version and healthcheck work without one.
type commandContext struct {
	configPath string
	envFile    string
	lookup     config.LookupFunc

	cfg    *config.AppConfig
	cfgErr error
}

func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	if c.cfg != nil || c.cfgErr != nil {
		if c.cfgErr != nil {
			return config.AppConfig{}, c.cfgErr
		}
		return *c.cfg, nil
	}
	opts := []config.LoaderOption{}
	if c.envFile != "" {
		opts = append(opts, config.WithEnvFile(c.envFile))
	}
	if c.lookup != nil {
		opts = append(opts, config.WithLookup(c.lookup))
	}
	cfg, err := config.NewLoader(c.configPath, version.Version, opts...).Load()
	if err != nil {
		c.cfgErr = fmt.Errorf("load config: %w", err)
		return config.AppConfig{}, c.cfgErr
	}
	c.cfg = &cfg
	return cfg, nil
}

// openStore connects to the configured Redis.
func (c *commandContext) openStore(ctx context.Context) (*store.RedisStore, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.New(ctx, store.Config{
		URL:     cfg.Redis.URL,
		Cluster: cfg.Redis.Cluster,
	}, log.WithComponent("cli"))
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&commandContext{})
}

func newRootCommandWith(cc *commandContext) *cobra.Command {
	serve := newServeCommand(cc)

	rootCmd := &cobra.Command{
		Use:           "ad-normalizer",
		Short:         "Normalizing VAST/VMAP proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running the binary without a subcommand serves.
		RunE: serve.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&cc.envFile, "env-file", ".env", "Dotenv file loaded before the environment")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newJobsCommand(cc))
	rootCmd.AddCommand(newBlacklistCommand(cc))
	rootCmd.AddCommand(newHealthcheckCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
