package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagelens-ai/pagelens/pkg/analyzer"
	"github.com/pagelens-ai/pagelens/pkg/config"
	"github.com/pagelens-ai/pagelens/pkg/content"
	"github.com/pagelens-ai/pagelens/pkg/coordinator"
	"github.com/pagelens-ai/pagelens/pkg/history"
	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
	"github.com/pagelens-ai/pagelens/pkg/models"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		configPath  string
		pageURL     string
		platform    string
		contentType string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze page text from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			var text []byte
			if len(args) == 1 {
				text, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
			} else {
				text, err = io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			ec, err := content.NewNormalizer(cfg.Content.MaxTextBytes).Normalize(models.ExtractedContent{
				MainText: string(text),
				URL:      pageURL,
				Metadata: models.ContentMetadata{Platform: platform, ContentType: contentType},
			})
			if err != nil {
				return err
			}

			coord := coordinator.New(analyzer.New(cfg.Provider), nil, nil)
			defer coord.Close()

			start := time.Now()
			out, err := coord.Analyze(context.Background(), ec, "")
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			if cfg.History.Enabled {
				recordOneShot(cfg, ec, out, time.Since(start))
			}

			if asJSON {
				data, err := jsonutil.MarshalIndent(out.Result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Sentiment:  %s (confidence %.2f)\n", out.Result.Sentiment, out.Result.Confidence)
			fmt.Printf("Provider:   %s\n", out.Provider)
			fmt.Printf("Platform:   %s\n", ec.Metadata.Platform)
			fmt.Printf("Summary:    %s\n", out.Result.Summary)
			if len(out.Result.KeyInsights) > 0 {
				fmt.Println("\nKey Insights")
				for _, s := range out.Result.KeyInsights {
					fmt.Printf("  - %s\n", s)
				}
			}
			if len(out.Result.ActionableItems) > 0 {
				fmt.Println("\nActionable Items")
				for _, s := range out.Result.ActionableItems {
					fmt.Printf("  - %s\n", s)
				}
			}
			if len(out.Result.Categories) > 0 {
				fmt.Println("\nCategories")
				for _, s := range out.Result.Categories {
					fmt.Printf("  - %s\n", s)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL, used to detect the platform")
	cmd.Flags().StringVar(&platform, "platform", "", "platform tag, overrides URL detection")
	cmd.Flags().StringVar(&contentType, "content-type", "", "page kind such as dashboard or ticket")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}

// recordOneShot writes a best-effort history record for a CLI analysis.
func recordOneShot(cfg *config.Config, ec models.ExtractedContent, out coordinator.Outcome, elapsed time.Duration) {
	store, err := history.New(cfg.DBPath, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		return
	}
	defer func() { _ = store.Close() }()

	rec := models.AnalysisRecord{
		RequestID:   "cli",
		ContentHash: out.ContentHash,
		URL:         ec.URL,
		Platform:    ec.Metadata.Platform,
		ContentType: ec.Metadata.ContentType,
		WordCount:   ec.Metadata.WordCount,
		Sentiment:   out.Result.Sentiment,
		Confidence:  out.Result.Confidence,
		Summary:     out.Result.Summary,
		Provider:    out.Provider,
		LatencyMs:   elapsed.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Record(context.Background(), rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: history record failed: %v\n", err)
	}
}

// loadConfig loads the named config file, or defaults when no path is given.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
