package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pagelens-ai/pagelens/pkg/config"
	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
	"github.com/pagelens-ai/pagelens/pkg/models"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel    = "claude-3-5-haiku-20241022"
	anthropicVersion         = "2023-06-01"
)

type anthropicAnalyzer struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

func newAnthropic(cfg config.ProviderConfig, client *http.Client) Analyzer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &anthropicAnalyzer{
		endpoint:  defaultString(cfg.Endpoint, defaultAnthropicEndpoint),
		apiKey:    cfg.APIKey,
		model:     defaultString(cfg.Model, defaultAnthropicModel),
		maxTokens: maxTokens,
		client:    client,
	}
}

func (a *anthropicAnalyzer) Name() string { return "anthropic" }

func (a *anthropicAnalyzer) Analyze(ctx context.Context, content models.ExtractedContent) (models.AnalysisResult, error) {
	reqBody := map[string]any{
		"model":      a.model,
		"max_tokens": a.maxTokens,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(content)},
		},
	}

	body, err := jsonutil.Marshal(reqBody)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: %s: %s", resp.Status, truncate(respBody, 256))
	}

	var msg struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := jsonutil.Unmarshal(respBody, &msg); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(msg.Content) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: response has no content")
	}

	result, err := parseResult(msg.Content[0].Text)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("anthropic: %w", err)
	}
	return result, nil
}
