package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagelens-ai/pagelens/pkg/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		platforms  bool
		sentiment  bool
		purgeDays  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the analysis history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			store, err := history.New(cfg.DBPath, 0)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := context.Background()

			if purgeDays > 0 {
				deleted, err := store.PurgeOlderThan(ctx, purgeDays)
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d history records older than %d days.\n", deleted, purgeDays)
				return nil
			}

			if platforms {
				summaries, err := store.ByPlatform(ctx)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Println("No analyses recorded yet.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PLATFORM\tANALYSES\tCACHED\tAVG CONFIDENCE\tAVG WORDS")
				for _, s := range summaries {
					platform := s.Platform
					if platform == "" {
						platform = "unknown"
					}
					fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%d\n",
						platform, s.AnalysisCount, s.CacheHits, s.AvgConfidence, s.AvgWordCount)
				}
				return w.Flush()
			}

			if sentiment {
				counts, err := store.SentimentBreakdown(ctx, time.Now().UTC().Add(-24*time.Hour))
				if err != nil {
					return err
				}
				if len(counts) == 0 {
					fmt.Println("No analyses recorded in the last 24h.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SENTIMENT\tCOUNT")
				for _, c := range counts {
					fmt.Fprintf(w, "%s\t%d\n", c.Sentiment, c.Count)
				}
				return w.Flush()
			}

			records, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No analyses recorded yet.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tPLATFORM\tTYPE\tSENTIMENT\tCONF\tWORDS\tPROVIDER\tCACHED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%d\t%s\t%v\n",
					r.CreatedAt.Format("2006-01-02T15:04:05"),
					r.Platform, r.ContentType, r.Sentiment, r.Confidence,
					r.WordCount, r.Provider, r.Cached)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().IntVar(&limit, "limit", 20, "max records to show")
	cmd.Flags().BoolVar(&platforms, "platforms", false, "show per-platform aggregates")
	cmd.Flags().BoolVar(&sentiment, "sentiment", false, "show the last 24h sentiment breakdown")
	cmd.Flags().IntVar(&purgeDays, "purge", 0, "delete records older than this many days")
	return cmd
}
