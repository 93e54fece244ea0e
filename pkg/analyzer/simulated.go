package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagelens-ai/pagelens/pkg/models"
)

// simulatedAnalyzer produces deterministic heuristic results without calling
// any external service. It backs the default configuration and the fallback
// path when no API credentials are present.
type simulatedAnalyzer struct{}

// NewSimulated returns the local heuristic analyzer.
func NewSimulated() Analyzer {
	return simulatedAnalyzer{}
}

func (simulatedAnalyzer) Name() string { return "simulated" }

var positiveSignals = []string{
	"success", "growth", "improved", "increase", "resolved",
	"completed", "launch", "approved", "on track",
}

var negativeSignals = []string{
	"error", "failed", "failure", "problem", "issue", "outage",
	"decline", "decrease", "overdue", "critical", "blocked",
}

// categoryRules is ordered so repeated runs categorize identically.
var categoryRules = []struct {
	name     string
	keywords []string
}{
	{"billing", []string{"invoice", "payment", "billing", "subscription", "plan"}},
	{"analytics", []string{"dashboard", "metric", "report", "chart", "conversion"}},
	{"support", []string{"ticket", "support", "helpdesk", "sla"}},
	{"project", []string{"task", "sprint", "milestone", "backlog", "deadline"}},
	{"communication", []string{"message", "channel", "thread", "inbox", "meeting"}},
}

func (simulatedAnalyzer) Analyze(_ context.Context, content models.ExtractedContent) (models.AnalysisResult, error) {
	text := strings.ToLower(content.MainText)
	meta := content.Metadata

	var pos, neg int
	for _, w := range positiveSignals {
		pos += strings.Count(text, w)
	}
	for _, w := range negativeSignals {
		neg += strings.Count(text, w)
	}

	sentiment := models.SentimentNeutral
	switch {
	case pos > neg:
		sentiment = models.SentimentPositive
	case neg > pos:
		sentiment = models.SentimentNegative
	}

	insights := []string{
		fmt.Sprintf("The page holds roughly %d words of visible text", meta.WordCount),
	}
	if meta.Platform != "" && meta.Platform != "unknown" {
		insights = append(insights, fmt.Sprintf("Content comes from %s", meta.Platform))
	}
	if meta.HasInteractiveElements {
		insights = append(insights, fmt.Sprintf("The page is interactive with %d form(s)", meta.FormCount))
	}
	if pos+neg > 0 {
		insights = append(insights, fmt.Sprintf("Tone signals: %d positive, %d negative", pos, neg))
	}

	var actions []string
	switch sentiment {
	case models.SentimentNegative:
		actions = append(actions, "Review the flagged problems and prioritize follow-up")
	case models.SentimentPositive:
		actions = append(actions, "Share the highlights with your team")
	default:
		actions = append(actions, "Skim the main sections for items needing attention")
	}
	if meta.HasInteractiveElements {
		actions = append(actions, "Complete or delegate the open form fields")
	}

	categories := []string{}
	if meta.ContentType != "" && meta.ContentType != "unknown" {
		categories = append(categories, meta.ContentType)
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				categories = append(categories, rule.name)
				break
			}
		}
	}

	confidence := 0.5
	if meta.WordCount >= 50 {
		confidence += 0.1
	}
	if meta.WordCount >= 300 {
		confidence += 0.1
	}
	if pos+neg > 0 {
		confidence += 0.1
	}
	if meta.Platform != "" && meta.Platform != "unknown" {
		confidence += 0.1
	}

	return models.AnalysisResult{
		Summary:         summarize(content.MainText),
		Sentiment:       sentiment,
		KeyInsights:     insights,
		Confidence:      confidence,
		ActionableItems: actions,
		Categories:      categories,
	}, nil
}

// summarize returns the leading sentence of the text, clipped to 200 runes.
func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "No visible text was extracted from this page."
	}
	if i := strings.IndexAny(text, ".!?"); i > 0 {
		text = text[:i+1]
	}
	runes := []rune(text)
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return text
}
