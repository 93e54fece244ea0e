package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "pagelens",
		Short:   "PageLens — SaaS page content analysis service",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newAnalyzeCmd(),
		newCacheCmd(),
		newHistoryCmd(),
		newStatusCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
