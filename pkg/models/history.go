package models

import "time"

// AnalysisRecord is one completed analysis as persisted in the history store.
type AnalysisRecord struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	ContentHash string    `json:"content_hash"`
	URL         string    `json:"url,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	WordCount   int       `json:"word_count"`
	Sentiment   Sentiment `json:"sentiment"`
	Confidence  float64   `json:"confidence"`
	Summary     string    `json:"summary,omitempty"`
	Provider    string    `json:"provider"`
	Cached      bool      `json:"cached"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlatformSummary aggregates recorded analyses for one platform.
type PlatformSummary struct {
	Platform      string  `json:"platform"`
	AnalysisCount int     `json:"analysis_count"`
	CacheHits     int     `json:"cache_hits"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgWordCount  int     `json:"avg_word_count"`
}

// SentimentCount is one row of a sentiment breakdown.
type SentimentCount struct {
	Sentiment Sentiment `json:"sentiment"`
	Count     int       `json:"count"`
}
