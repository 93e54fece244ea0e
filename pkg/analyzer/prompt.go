package analyzer

import (
	"fmt"
	"strings"

	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
	"github.com/pagelens-ai/pagelens/pkg/models"
)

const systemPrompt = `You analyze the visible content of SaaS web pages for a browser extension.
Respond with a single JSON object and nothing else, using exactly these keys:
{"summary": string, "sentiment": "positive"|"negative"|"neutral", "keyInsights": [string], "confidence": number between 0 and 1, "actionableItems": [string], "categories": [string]}
Keep the summary under three sentences. Key insights are concrete observations about the page, actionable items are suggested next steps for the person viewing it.`

// buildPrompt renders the user message for one analysis request.
func buildPrompt(content models.ExtractedContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", content.URL)
	fmt.Fprintf(&b, "Platform: %s\n", defaultString(content.Metadata.Platform, "unknown"))
	fmt.Fprintf(&b, "Content type: %s\n", defaultString(content.Metadata.ContentType, "unknown"))
	fmt.Fprintf(&b, "Word count: %d\n", content.Metadata.WordCount)
	if content.Metadata.HasInteractiveElements {
		fmt.Fprintf(&b, "The page has interactive elements (%d forms).\n", content.Metadata.FormCount)
	}
	b.WriteString("\nPage content:\n")
	b.WriteString(content.MainText)
	return b.String()
}

// parseResult decodes the model's reply into an AnalysisResult. Replies
// wrapped in a markdown code fence are unwrapped first. Out-of-range
// confidence is clamped and an unknown sentiment becomes neutral; only
// undecodable JSON is an error.
func parseResult(reply string) (models.AnalysisResult, error) {
	reply = stripCodeFence(reply)

	var result models.AnalysisResult
	if err := jsonutil.UnmarshalString(reply, &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}

	if !result.Sentiment.Valid() {
		result.Sentiment = models.SentimentNeutral
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	// The extension expects arrays, not nulls.
	if result.KeyInsights == nil {
		result.KeyInsights = []string{}
	}
	if result.ActionableItems == nil {
		result.ActionableItems = []string{}
	}
	if result.Categories == nil {
		result.Categories = []string{}
	}
	return result, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 && !strings.HasPrefix(s, "{") {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
