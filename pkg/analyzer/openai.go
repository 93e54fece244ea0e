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
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel    = "gpt-4o-mini"
)

type openaiAnalyzer struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

func newOpenAI(cfg config.ProviderConfig, client *http.Client) Analyzer {
	return &openaiAnalyzer{
		endpoint:  defaultString(cfg.Endpoint, defaultOpenAIEndpoint),
		apiKey:    cfg.APIKey,
		model:     defaultString(cfg.Model, defaultOpenAIModel),
		maxTokens: cfg.MaxTokens,
		client:    client,
	}
}

func (a *openaiAnalyzer) Name() string { return "openai" }

func (a *openaiAnalyzer) Analyze(ctx context.Context, content models.ExtractedContent) (models.AnalysisResult, error) {
	reqBody := map[string]any{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(content)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	if a.maxTokens > 0 {
		reqBody["max_tokens"] = a.maxTokens
	}

	body, err := jsonutil.Marshal(reqBody)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, fmt.Errorf("openai: %s: %s", resp.Status, truncate(respBody, 256))
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := jsonutil.Unmarshal(respBody, &cc); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("openai: response has no choices")
	}

	result, err := parseResult(cc.Choices[0].Message.Content)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: %w", err)
	}
	return result, nil
}
