// Package coordinator sequences analysis requests through the result cache,
// the rate limiter, and the analysis backend.
package coordinator

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pagelens-ai/pagelens/pkg/analyzer"
	"github.com/pagelens-ai/pagelens/pkg/cache/memory"
	"github.com/pagelens-ai/pagelens/pkg/models"
	"github.com/pagelens-ai/pagelens/pkg/ratelimit"
)

// Coordinator owns the cache and the limiter and runs each request through
// them in a fixed order: cache first, then admission, then the backend. The
// two structures are independent; nothing but the Coordinator mutates them.
// Concurrent callers for the same content and identity share one backend
// call instead of each consuming admission budget.
type Coordinator struct {
	analyzer analyzer.Analyzer
	cache    *memory.Cache
	limiter  *ratelimit.Limiter
	group    singleflight.Group
}

// Outcome reports one coordinated analysis.
type Outcome struct {
	Result      models.AnalysisResult
	ContentHash string
	Cached      bool
	Provider    string
	Latency     time.Duration
}

// New creates a Coordinator. A nil cache disables result caching; a nil
// limiter disables admission control.
func New(a analyzer.Analyzer, c *memory.Cache, l *ratelimit.Limiter) *Coordinator {
	return &Coordinator{analyzer: a, cache: c, limiter: l}
}

// Analyze returns the analysis for content. A fresh cached result is
// returned immediately and never touches the limiter. On a miss the call
// must win admission before the backend runs; admission consumed by a
// failing backend call is not refunded. Rate limit rejection surfaces as
// ratelimit.ErrExceeded, backend errors are returned as-is. An empty
// identity maps to ratelimit.GlobalIdentity.
func (c *Coordinator) Analyze(ctx context.Context, content models.ExtractedContent, identity string) (Outcome, error) {
	if identity == "" {
		identity = ratelimit.GlobalIdentity
	}
	start := time.Now()
	contentHash := memory.HashContent(content.MainText)

	if c.cache != nil {
		if result, ok := c.cache.Get(contentHash); ok {
			return Outcome{
				Result:      result,
				ContentHash: contentHash,
				Cached:      true,
				Provider:    c.analyzer.Name(),
				Latency:     time.Since(start),
			}, nil
		}
	}

	v, err, _ := c.group.Do(contentHash+"\x00"+identity, func() (any, error) {
		if c.limiter != nil {
			if err := c.limiter.Allow(identity); err != nil {
				return nil, err
			}
		}
		result, err := c.analyzer.Analyze(ctx, content)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.Put(contentHash, result)
		}
		return result, nil
	})
	if err != nil {
		return Outcome{ContentHash: contentHash}, err
	}

	return Outcome{
		Result:      v.(models.AnalysisResult),
		ContentHash: contentHash,
		Provider:    c.analyzer.Name(),
		Latency:     time.Since(start),
	}, nil
}

// Provider returns the active backend's name.
func (c *Coordinator) Provider() string {
	return c.analyzer.Name()
}

// CacheStats reports cache performance counters.
func (c *Coordinator) CacheStats() models.CacheStats {
	if c.cache == nil {
		return models.CacheStats{}
	}
	return c.cache.Stats()
}

// ClearCache removes cached results and reports how many were removed. When
// expiredOnly is true only entries past the TTL are dropped.
func (c *Coordinator) ClearCache(expiredOnly bool) int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Clear(expiredOnly)
}

// RateLimitStatus reports the admission window for identity without
// consuming budget.
func (c *Coordinator) RateLimitStatus(identity string) models.RateLimitStatus {
	if identity == "" {
		identity = ratelimit.GlobalIdentity
	}
	if c.limiter == nil {
		return models.RateLimitStatus{Identity: identity}
	}
	return c.limiter.Status(identity)
}

// SetCacheTTL applies a new TTL to the result cache, if caching is enabled.
func (c *Coordinator) SetCacheTTL(ttl time.Duration) {
	if c.cache != nil {
		c.cache.SetTTL(ttl)
	}
}

// SetRateLimit applies a new admission budget, if rate limiting is enabled.
func (c *Coordinator) SetRateLimit(limit int, window time.Duration) {
	if c.limiter != nil {
		c.limiter.SetLimits(limit, window)
	}
}

// Close stops background work owned by the coordinator.
func (c *Coordinator) Close() {
	if c.cache != nil {
		c.cache.Stop()
	}
}
