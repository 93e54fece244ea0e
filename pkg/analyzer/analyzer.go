package analyzer

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/pagelens-ai/pagelens/pkg/config"
	"github.com/pagelens-ai/pagelens/pkg/models"
)

// Analyzer produces an AnalysisResult for extracted page content. Calls may
// be slow and may fail; admission control and retries are the caller's
// concern.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, content models.ExtractedContent) (models.AnalysisResult, error)
}

// New builds the Analyzer described by cfg. Remote kinds configured without
// an API key fall back to the local simulated analyzer so the service stays
// usable without credentials.
func New(cfg config.ProviderConfig) Analyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Kind {
	case "openai":
		if cfg.APIKey == "" {
			log.Printf("provider openai has no api_key, falling back to simulated analysis")
			return NewSimulated()
		}
		return newOpenAI(cfg, client)
	case "anthropic":
		if cfg.APIKey == "" {
			log.Printf("provider anthropic has no api_key, falling back to simulated analysis")
			return NewSimulated()
		}
		return newAnthropic(cfg, client)
	default:
		return NewSimulated()
	}
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
