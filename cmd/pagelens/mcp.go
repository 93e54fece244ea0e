package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pagelens-ai/pagelens/pkg/analyzer"
	"github.com/pagelens-ai/pagelens/pkg/cache/memory"
	"github.com/pagelens-ai/pagelens/pkg/content"
	"github.com/pagelens-ai/pagelens/pkg/coordinator"
	"github.com/pagelens-ai/pagelens/pkg/history"
	"github.com/pagelens-ai/pagelens/pkg/mcp"
	"github.com/pagelens-ai/pagelens/pkg/ratelimit"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start PageLens as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
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

			normalizer := content.NewNormalizer(cfg.Content.MaxTextBytes)
			srv := mcp.New(coord, hist, normalizer, version)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}
