package mcp

import (
	"fmt"
	"strings"

	"github.com/pagelens-ai/pagelens/pkg/coordinator"
	"github.com/pagelens-ai/pagelens/pkg/models"
)

// formatAnalysis renders one analysis outcome as readable text.
func formatAnalysis(out coordinator.Outcome) string {
	var b strings.Builder
	source := "fresh"
	if out.Cached {
		source = "cached"
	}
	fmt.Fprintf(&b, "Sentiment:  %s (confidence %.2f)\n", out.Result.Sentiment, out.Result.Confidence)
	fmt.Fprintf(&b, "Source:     %s via %s\n", source, out.Provider)
	fmt.Fprintf(&b, "Summary:    %s\n", out.Result.Summary)
	if len(out.Result.KeyInsights) > 0 {
		b.WriteString("\nKey Insights\n")
		for _, s := range out.Result.KeyInsights {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	if len(out.Result.ActionableItems) > 0 {
		b.WriteString("\nActionable Items\n")
		for _, s := range out.Result.ActionableItems {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	if len(out.Result.Categories) > 0 {
		fmt.Fprintf(&b, "\nCategories: %s\n", strings.Join(out.Result.Categories, ", "))
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

// formatRateLimit formats one limiter window snapshot as text.
func formatRateLimit(st models.RateLimitStatus) string {
	if !st.Enabled {
		return "Rate limiting is disabled.\n"
	}
	reset := "-"
	if !st.ResetAt.IsZero() {
		reset = st.ResetAt.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("Rate Limit (%s)\n"+
		"  Limit:     %d per window\n"+
		"  Used:      %d\n"+
		"  Remaining: %d\n"+
		"  Resets:    %s\n",
		st.Identity, st.Limit, st.Used, st.Remaining, reset)
}

// formatPlatforms formats per-platform usage as a text table.
func formatPlatforms(rows []models.PlatformSummary) string {
	if len(rows) == 0 {
		return "No analyses recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %10s %10s %12s %10s\n",
		"Platform", "Analyses", "Cached", "Confidence", "Avg Words")
	b.WriteString(strings.Repeat("-", 61) + "\n")
	for _, r := range rows {
		platform := r.Platform
		if platform == "" {
			platform = "unknown"
		}
		fmt.Fprintf(&b, "%-15s %10d %10d %11.2f %10d\n",
			platform, r.AnalysisCount, r.CacheHits, r.AvgConfidence, r.AvgWordCount)
	}
	return b.String()
}

// formatRecords formats recent analyses as a text table.
func formatRecords(records []models.AnalysisRecord) string {
	if len(records) == 0 {
		return "No analyses recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-12s %-10s %6s %-40s\n",
		"Time", "Platform", "Sentiment", "Words", "Summary")
	b.WriteString(strings.Repeat("-", 92) + "\n")
	for _, r := range records {
		platform := r.Platform
		if platform == "" {
			platform = "unknown"
		}
		summary := r.Summary
		if len(summary) > 40 {
			summary = summary[:37] + "..."
		}
		fmt.Fprintf(&b, "%-20s %-12s %-10s %6d %-40s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			platform, r.Sentiment, r.WordCount, summary)
	}
	return b.String()
}
