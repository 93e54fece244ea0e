package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pagelens-ai/pagelens/pkg/cache/memory"
	"github.com/pagelens-ai/pagelens/pkg/config"
	"github.com/pagelens-ai/pagelens/pkg/coordinator"
	"github.com/pagelens-ai/pagelens/pkg/history"
	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
	"github.com/pagelens-ai/pagelens/pkg/models"
	"github.com/pagelens-ai/pagelens/pkg/ratelimit"
)

type stubAnalyzer struct {
	mu     sync.Mutex
	calls  int
	result models.AnalysisResult
	err    error
}

func (s *stubAnalyzer) Name() string { return "stub" }

func (s *stubAnalyzer) Analyze(ctx context.Context, ec models.ExtractedContent) (models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return models.AnalysisResult{}, s.err
	}
	return s.result, nil
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testEnv struct {
	server *Server
	stub   *stubAnalyzer
}

func newTestServer(t *testing.T, withHistory bool, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	stub := &stubAnalyzer{result: models.AnalysisResult{
		Summary:         "Open issues need triage.",
		Sentiment:       models.SentimentNeutral,
		KeyInsights:     []string{"12 open issues"},
		Confidence:      0.8,
		ActionableItems: []string{"Review the oldest issue"},
		Categories:      []string{"project-management"},
	}}

	coord := coordinator.New(stub, memory.New(cfg.Cache.TTL), ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window))
	t.Cleanup(coord.Close)

	var store history.Store
	if withHistory {
		st, err := history.New(filepath.Join(t.TempDir(), "test.db"), 0)
		if err != nil {
			t.Fatalf("history.New: %v", err)
		}
		t.Cleanup(func() { st.Close() })
		store = st
	}

	return &testEnv{server: New(cfg, coord, store, "test"), stub: stub}
}

func analyzeRequest(t *testing.T, text string) *http.Request {
	t.Helper()
	body, err := jsonutil.Marshal(models.ExtractedContent{
		MainText: text,
		URL:      "https://github.com/pagelens/pagelens/issues/42",
		Metadata: models.ContentMetadata{ContentType: "ticket"},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewReader(body))
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeCacheMissThenHit(t *testing.T) {
	env := newTestServer(t, false, nil)

	first := do(env.server, analyzeRequest(t, "Sprint board with twelve open issues"))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, body %s", first.Code, first.Body.String())
	}
	if got := first.Header().Get("X-Pagelens-Cache"); got != "miss" {
		t.Errorf("first X-Pagelens-Cache = %q, want miss", got)
	}

	second := do(env.server, analyzeRequest(t, "Sprint board with twelve open issues"))
	if second.Code != http.StatusOK {
		t.Fatalf("second request status = %d", second.Code)
	}
	if got := second.Header().Get("X-Pagelens-Cache"); got != "hit" {
		t.Errorf("second X-Pagelens-Cache = %q, want hit", got)
	}

	var resp models.AnalyzeResponse
	if err := jsonutil.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Cached {
		t.Error("second response cached = false, want true")
	}
	if resp.ContentHash == "" {
		t.Error("response contentHash is empty")
	}
	if resp.Provider != "stub" {
		t.Errorf("provider = %q, want stub", resp.Provider)
	}
	if resp.Result.Summary != "Open issues need triage." {
		t.Errorf("summary = %q", resp.Result.Summary)
	}

	if env.stub.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1", env.stub.callCount())
	}
}

func TestAnalyzeRejectsEmptyText(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := do(env.server, analyzeRequest(t, "   \n\t  "))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.stub.callCount() != 0 {
		t.Errorf("backend calls = %d, want 0", env.stub.callCount())
	}
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	env := newTestServer(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewReader([]byte("{not json")))
	rec := do(env.server, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := jsonutil.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Error.Type != "pagelens_error" {
		t.Errorf("error type = %q", body.Error.Type)
	}
	if body.Error.Code != http.StatusBadRequest {
		t.Errorf("error code = %d", body.Error.Code)
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	env := newTestServer(t, false, func(cfg *config.Config) {
		cfg.RateLimit.Limit = 2
	})

	texts := []string{
		"First page about billing invoices",
		"Second page about analytics dashboards",
		"Third page about support tickets",
	}
	for i, text := range texts[:2] {
		if rec := do(env.server, analyzeRequest(t, text)); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}

	rec := do(env.server, analyzeRequest(t, texts[2]))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("Retry-After = %q, want positive integer", rec.Header().Get("Retry-After"))
	}
	if env.stub.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2", env.stub.callCount())
	}
}

func TestAnalyzeCachedHitBypassesLimit(t *testing.T) {
	env := newTestServer(t, false, func(cfg *config.Config) {
		cfg.RateLimit.Limit = 1
	})

	if rec := do(env.server, analyzeRequest(t, "Same page text")); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	// Budget is now exhausted, but the repeat request is served from cache.
	rec := do(env.server, analyzeRequest(t, "Same page text"))
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Pagelens-Cache"); got != "hit" {
		t.Errorf("X-Pagelens-Cache = %q, want hit", got)
	}
}

func TestAnalyzeBackendError(t *testing.T) {
	env := newTestServer(t, false, nil)
	env.stub.err = errors.New("upstream exploded")

	rec := do(env.server, analyzeRequest(t, "Some page text"))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("upstream exploded")) {
		t.Errorf("body %s does not mention backend error", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	env := newTestServer(t, false, func(cfg *config.Config) {
		cfg.Auth.APIKeys = []string{"sk-pagelens-test"}
	})

	noKey := do(env.server, analyzeRequest(t, "Some page text"))
	if noKey.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", noKey.Code)
	}

	wrong := analyzeRequest(t, "Some page text")
	wrong.Header.Set("Authorization", "Bearer sk-wrong")
	if rec := do(env.server, wrong); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}

	bearer := analyzeRequest(t, "Some page text")
	bearer.Header.Set("Authorization", "Bearer sk-pagelens-test")
	if rec := do(env.server, bearer); rec.Code != http.StatusOK {
		t.Errorf("bearer key status = %d, want 200", rec.Code)
	}

	apiKey := analyzeRequest(t, "Another page text")
	apiKey.Header.Set("x-api-key", "sk-pagelens-test")
	if rec := do(env.server, apiKey); rec.Code != http.StatusOK {
		t.Errorf("x-api-key status = %d, want 200", rec.Code)
	}

	health := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	if rec := do(env.server, health); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without key", rec.Code)
	}
}

func TestPerKeyScope(t *testing.T) {
	env := newTestServer(t, false, func(cfg *config.Config) {
		cfg.RateLimit.Limit = 1
		cfg.RateLimit.Scope = config.ScopePerKey
	})

	alice := analyzeRequest(t, "Page text one")
	alice.Header.Set("x-api-key", "key-alice")
	if rec := do(env.server, alice); rec.Code != http.StatusOK {
		t.Fatalf("alice first status = %d", rec.Code)
	}

	aliceAgain := analyzeRequest(t, "Page text two")
	aliceAgain.Header.Set("x-api-key", "key-alice")
	if rec := do(env.server, aliceAgain); rec.Code != http.StatusTooManyRequests {
		t.Errorf("alice second status = %d, want 429", rec.Code)
	}

	bob := analyzeRequest(t, "Page text three")
	bob.Header.Set("x-api-key", "key-bob")
	if rec := do(env.server, bob); rec.Code != http.StatusOK {
		t.Errorf("bob status = %d, want 200", rec.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	env := newTestServer(t, false, nil)

	do(env.server, analyzeRequest(t, "Cache me"))
	do(env.server, analyzeRequest(t, "Cache me"))

	stats := do(env.server, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))
	if stats.Code != http.StatusOK {
		t.Fatalf("stats status = %d", stats.Code)
	}
	var cs models.CacheStats
	if err := jsonutil.Unmarshal(stats.Body.Bytes(), &cs); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if cs.Entries != 1 || cs.Hits != 1 || cs.Misses != 1 {
		t.Errorf("stats = %+v, want 1 entry, 1 hit, 1 miss", cs)
	}

	clear := do(env.server, httptest.NewRequest(http.MethodPost, "/v1/cache/clear", nil))
	if clear.Code != http.StatusOK {
		t.Fatalf("clear status = %d", clear.Code)
	}
	var removed map[string]int
	if err := jsonutil.Unmarshal(clear.Body.Bytes(), &removed); err != nil {
		t.Fatalf("unmarshal clear: %v", err)
	}
	if removed["removed"] != 1 {
		t.Errorf("removed = %d, want 1", removed["removed"])
	}
}

func TestRateLimitEndpoint(t *testing.T) {
	env := newTestServer(t, false, nil)

	before := do(env.server, httptest.NewRequest(http.MethodGet, "/v1/ratelimit", nil))
	var st models.RateLimitStatus
	if err := jsonutil.Unmarshal(before.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.Used != 0 || st.Remaining != 10 {
		t.Errorf("before: used = %d remaining = %d, want 0/10", st.Used, st.Remaining)
	}

	do(env.server, analyzeRequest(t, "Consume one admission"))

	after := do(env.server, httptest.NewRequest(http.MethodGet, "/v1/ratelimit", nil))
	if err := jsonutil.Unmarshal(after.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.Used != 1 || st.Remaining != 9 {
		t.Errorf("after: used = %d remaining = %d, want 1/9", st.Used, st.Remaining)
	}
}

func TestHistoryRecorded(t *testing.T) {
	env := newTestServer(t, true, nil)

	if rec := do(env.server, analyzeRequest(t, "Board with open issues")); rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d", rec.Code)
	}

	// The record is written asynchronously.
	var records []models.AnalysisRecord
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(env.server, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("history status = %d", rec.Code)
		}
		if err := jsonutil.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("unmarshal history: %v", err)
		}
		if len(records) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(records) != 1 {
		t.Fatalf("history records = %d, want 1", len(records))
	}
	if records[0].Platform != "github" {
		t.Errorf("platform = %q, want github", records[0].Platform)
	}
	if records[0].Cached {
		t.Error("record cached = true, want false")
	}
	if records[0].Provider != "stub" {
		t.Errorf("provider = %q, want stub", records[0].Provider)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := do(env.server, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("history status = %d, want 503", rec.Code)
	}
	rec = do(env.server, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stats status = %d, want 503", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestServer(t, true, nil)

	do(env.server, analyzeRequest(t, "Board with open issues"))

	var resp statsResponse
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(env.server, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("stats status = %d", rec.Code)
		}
		if err := jsonutil.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal stats: %v", err)
		}
		if resp.Last24h > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if resp.Last24h != 1 {
		t.Fatalf("last_24h = %d, want 1", resp.Last24h)
	}
	if len(resp.Platforms) != 1 || resp.Platforms[0].Platform != "github" {
		t.Errorf("platforms = %+v, want one github entry", resp.Platforms)
	}
	if len(resp.Sentiments) != 1 || resp.Sentiments[0].Sentiment != models.SentimentNeutral {
		t.Errorf("sentiments = %+v, want one neutral entry", resp.Sentiments)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := do(env.server, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report models.StatusReport
	if err := jsonutil.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Version != "test" {
		t.Errorf("version = %q, want test", report.Version)
	}
	if report.Provider != "stub" {
		t.Errorf("provider = %q, want stub", report.Provider)
	}
	if report.RateLimit.Limit != 10 {
		t.Errorf("rate limit = %d, want 10", report.RateLimit.Limit)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestServer(t, false, nil)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/analyze"},
		{http.MethodPost, "/v1/cache/stats"},
		{http.MethodGet, "/v1/cache/clear"},
		{http.MethodPost, "/v1/ratelimit"},
		{http.MethodPost, "/v1/status"},
	}
	for _, tc := range cases {
		rec := do(env.server, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestServer(t, false, nil)

	req := analyzeRequest(t, "Some page text")
	req.Header.Set("X-Request-Id", "req-abc123")
	rec := do(env.server, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-abc123" {
		t.Errorf("X-Request-Id = %q, want req-abc123", got)
	}

	rec = do(env.server, analyzeRequest(t, "Another page text"))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id not generated")
	}
}
