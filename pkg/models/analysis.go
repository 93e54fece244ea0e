package models

// Sentiment classifies the overall tone of analyzed content.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the known sentiment values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// AnalysisResult is the outcome of analyzing one page's content. It is
// returned to the extension verbatim, so field names follow the extension
// wire format.
type AnalysisResult struct {
	Summary         string    `json:"summary"`
	Sentiment       Sentiment `json:"sentiment"`
	KeyInsights     []string  `json:"keyInsights"`
	Confidence      float64   `json:"confidence"`
	ActionableItems []string  `json:"actionableItems"`
	Categories      []string  `json:"categories"`
}

// AnalyzeResponse is the body of a successful analyze call.
type AnalyzeResponse struct {
	Result      AnalysisResult `json:"result"`
	ContentHash string         `json:"contentHash"`
	Cached      bool           `json:"cached"`
	Provider    string         `json:"provider"`
}
