package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pagelens-ai/pagelens/pkg/analyzer"
	"github.com/pagelens-ai/pagelens/pkg/cache/memory"
	"github.com/pagelens-ai/pagelens/pkg/config"
	"github.com/pagelens-ai/pagelens/pkg/coordinator"
	"github.com/pagelens-ai/pagelens/pkg/history"
	"github.com/pagelens-ai/pagelens/pkg/ratelimit"
	"github.com/pagelens-ai/pagelens/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var hist history.Store
			if cfg.History.Enabled {
				store, err := history.New(cfg.DBPath, cfg.History.RetentionDays)
				if err != nil {
					return fmt.Errorf("init history: %w", err)
				}
				defer func() { _ = store.Close() }()
				hist = store
			}

			var cache *memory.Cache
			if cfg.Cache.Enabled {
				cache = memory.New(cfg.Cache.TTL)
				cache.StartSweeper(cfg.Cache.SweepInterval)
			}

			var limiter *ratelimit.Limiter
			if cfg.RateLimit.Enabled {
				limiter = ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window)
			}

			coord := coordinator.New(analyzer.New(cfg.Provider), cache, limiter)
			defer coord.Close()

			srv := server.New(cfg, coord, hist, version)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watch {
				go func() {
					err := config.Watch(ctx, configPath, func(next *config.Config) {
						coord.SetCacheTTL(next.Cache.TTL)
						coord.SetRateLimit(next.RateLimit.Limit, next.RateLimit.Window)
					})
					if err != nil && ctx.Err() == nil {
						log.Printf("config watch stopped: %v", err)
					}
				}()
			}

			log.Printf("starting pagelens with config: %s (provider %s)", configPath, coord.Provider())
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pagelens.yaml", "path to config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload cache and rate limit settings on config changes")
	return cmd
}
