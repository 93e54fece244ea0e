package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagelens-ai/pagelens/pkg/models"
)

func newCacheCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		apiKey     string
	)

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analysis result cache of a running server",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			var stats models.CacheStats
			base := serverBaseURL(serverAddr, cfg.Listen)
			if err := apiCall(http.MethodGet, base+"/v1/cache/stats", apiKey, &stats); err != nil {
				return err
			}

			total := stats.Hits + stats.Misses
			hitRate := float64(0)
			if total > 0 {
				hitRate = float64(stats.Hits) / float64(total) * 100
			}
			fmt.Printf("Entries:  %d\nHits:     %d\nMisses:   %d\nHit Rate: %.1f%%\n",
				stats.Entries, stats.Hits, stats.Misses, hitRate)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			url := serverBaseURL(serverAddr, cfg.Listen) + "/v1/cache/clear"
			if expiredOnly {
				url += "?expired=true"
			}
			var resp struct {
				Removed int `json:"removed"`
			}
			if err := apiCall(http.MethodPost, url, apiKey, &resp); err != nil {
				return err
			}
			fmt.Printf("Removed %d cache entries.\n", resp.Removed)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&serverAddr, "server", "", "server base URL (default derived from config listen address)")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for the server")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
