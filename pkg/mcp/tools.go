package mcp

import (
	"context"
	"encoding/json"

	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
	"github.com/pagelens-ai/pagelens/pkg/models"
	"github.com/pagelens-ai/pagelens/pkg/ratelimit"
)

// Tool argument structs.

type analyzeArgs struct {
	Text        string `json:"text"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

type recentArgs struct {
	Limit int `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"pagelens_analyze":     handleAnalyze,
	"pagelens_cache_stats": handleCacheStats,
	"pagelens_ratelimit":   handleRateLimit,
	"pagelens_usage":       handleUsage,
	"pagelens_recent":      handleRecent,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "pagelens_analyze",
		Description: "Analyze page text and return a summary, sentiment, insights, and suggested actions. Repeated text is served from the result cache.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"text"},
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The visible page text to analyze",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "The page URL, used to detect the SaaS platform (optional)",
				},
				"content_type": map[string]any{
					"type":        "string",
					"description": "Page kind such as dashboard, ticket, or email (optional)",
				},
			},
		},
	},
	{
		Name:        "pagelens_cache_stats",
		Description: "Show analysis cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "pagelens_ratelimit",
		Description: "Show the current analysis rate limit window (limit, used, remaining, reset time).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "pagelens_usage",
		Description: "Show analysis counts and cache hits grouped by SaaS platform.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "pagelens_recent",
		Description: "List recent analyses with platform, sentiment, and summary.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of records to return (optional, default 10)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleAnalyze(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args analyzeArgs
	if len(rawArgs) > 0 {
		_ = jsonutil.Unmarshal(rawArgs, &args)
	}
	if args.Text == "" {
		return errorResult("text is required")
	}

	ec, err := s.normalizer.Normalize(models.ExtractedContent{
		MainText: args.Text,
		URL:      args.URL,
		Metadata: models.ContentMetadata{ContentType: args.ContentType},
	})
	if err != nil {
		return errorResult("Invalid content: " + err.Error())
	}

	out, err := s.coord.Analyze(ctx, ec, ratelimit.GlobalIdentity)
	if err != nil {
		return errorResult("Analysis failed: " + err.Error())
	}
	return textResult(formatAnalysis(out))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatCacheStats(s.coord.CacheStats()))
}

func handleRateLimit(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatRateLimit(s.coord.RateLimitStatus(ratelimit.GlobalIdentity)))
}

func handleUsage(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("History is not configured.")
	}
	summaries, err := s.history.ByPlatform(ctx)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	return textResult(formatPlatforms(summaries))
}

func handleRecent(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("History is not configured.")
	}
	var args recentArgs
	if len(rawArgs) > 0 {
		_ = jsonutil.Unmarshal(rawArgs, &args)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	records, err := s.history.Recent(ctx, limit)
	if err != nil {
		return errorResult("Error fetching recent analyses: " + err.Error())
	}
	return textResult(formatRecords(records))
}
