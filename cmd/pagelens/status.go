package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagelens-ai/pagelens/pkg/models"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		apiKey     string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			var st models.StatusReport
			base := serverBaseURL(serverAddr, cfg.Listen)
			if err := apiCall(http.MethodGet, base+"/v1/status", apiKey, &st); err != nil {
				return err
			}

			fmt.Printf("Version:   %s\n", st.Version)
			fmt.Printf("Uptime:    %s\n", (time.Duration(st.UptimeSec) * time.Second).String())
			fmt.Printf("Provider:  %s\n", st.Provider)
			fmt.Printf("Cache:     %d entries, %d hits, %d misses\n",
				st.Cache.Entries, st.Cache.Hits, st.Cache.Misses)
			if st.RateLimit.Enabled {
				fmt.Printf("RateLimit: %d/%d used", st.RateLimit.Used, st.RateLimit.Limit)
				if !st.RateLimit.ResetAt.IsZero() {
					fmt.Printf(", resets %s", st.RateLimit.ResetAt.Format(time.RFC3339))
				}
				fmt.Println()
			} else {
				fmt.Println("RateLimit: disabled")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "server base URL (default derived from config listen address)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the server")
	return cmd
}
