// Package server exposes the analysis coordinator over HTTP to the browser
// extension.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/pagelens-ai/pagelens/pkg/config"
	"github.com/pagelens-ai/pagelens/pkg/content"
	"github.com/pagelens-ai/pagelens/pkg/coordinator"
	"github.com/pagelens-ai/pagelens/pkg/history"
	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
	"github.com/pagelens-ai/pagelens/pkg/models"
	"github.com/pagelens-ai/pagelens/pkg/ratelimit"
)

// Server is the PageLens analysis API.
type Server struct {
	cfg        *config.Config
	coord      *coordinator.Coordinator
	history    history.Store
	normalizer *content.Normalizer
	handler    http.Handler
	apiKeys    map[string]struct{}
	version    string
	startedAt  time.Time
}

// New creates a Server wired with all dependencies. A nil history store
// disables the history endpoints.
func New(cfg *config.Config, coord *coordinator.Coordinator, hist history.Store, version string) *Server {
	s := &Server{
		cfg:        cfg,
		coord:      coord,
		history:    hist,
		normalizer: content.NewNormalizer(cfg.Content.MaxTextBytes),
		apiKeys:    make(map[string]struct{}, len(cfg.Auth.APIKeys)),
		version:    version,
		startedAt:  time.Now(),
	}
	for _, k := range cfg.Auth.APIKeys {
		s.apiKeys[k] = struct{}{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/v1/cache/clear", s.handleCacheClear)
	mux.HandleFunc("/v1/ratelimit", s.handleRateLimit)
	mux.HandleFunc("/v1/history", s.handleHistory)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.handler = recovery(requestID(logging(s.auth(mux))))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the API server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("pagelens listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// identity resolves the rate-limit identity for a request. Under the global
// scope every caller shares one window; under per_key each API key gets its
// own.
func (s *Server) identity(r *http.Request) string {
	if s.cfg.RateLimit.Scope == config.ScopePerKey {
		if key := extractAPIKey(r); key != "" {
			return key
		}
	}
	return ratelimit.GlobalIdentity
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	r.Body.Close()

	var ec models.ExtractedContent
	if err := jsonutil.Unmarshal(body, &ec); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ec, err = s.normalizer.Normalize(ec)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity := s.identity(r)
	reqStart := time.Now()

	out, err := s.coord.Analyze(r.Context(), ec, identity)
	if err != nil {
		if errors.Is(err, ratelimit.ErrExceeded) {
			st := s.coord.RateLimitStatus(identity)
			retry := int(time.Until(st.ResetAt).Seconds()) + 1
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
			return
		}
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	if s.history != nil {
		rec := models.AnalysisRecord{
			RequestID:   r.Header.Get("X-Request-Id"),
			ContentHash: out.ContentHash,
			URL:         ec.URL,
			Platform:    ec.Metadata.Platform,
			ContentType: ec.Metadata.ContentType,
			WordCount:   ec.Metadata.WordCount,
			Sentiment:   out.Result.Sentiment,
			Confidence:  out.Result.Confidence,
			Summary:     out.Result.Summary,
			Provider:    out.Provider,
			Cached:      out.Cached,
			LatencyMs:   time.Since(reqStart).Milliseconds(),
			CreatedAt:   time.Now().UTC(),
		}
		go func() {
			if err := s.history.Record(context.Background(), rec); err != nil {
				log.Printf("history record error: %v", err)
			}
		}()
	}

	if out.Cached {
		w.Header().Set("X-Pagelens-Cache", "hit")
	} else {
		w.Header().Set("X-Pagelens-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, models.AnalyzeResponse{
		Result:      out.Result,
		ContentHash: out.ContentHash,
		Cached:      out.Cached,
		Provider:    out.Provider,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.coord.CacheStats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	expiredOnly := r.URL.Query().Get("expired") == "true"
	removed := s.coord.ClearCache(expiredOnly)
	log.Printf("cache clear: removed %d entries (expired only: %v)", removed, expiredOnly)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.coord.RateLimitStatus(s.identity(r)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []models.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// statsResponse aggregates history for the stats endpoint.
type statsResponse struct {
	Platforms  []models.PlatformSummary `json:"platforms"`
	Sentiments []models.SentimentCount  `json:"sentiments"`
	Last24h    int64                    `json:"last_24h"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	platforms, err := s.history.ByPlatform(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	since := time.Now().UTC().Add(-24 * time.Hour)
	sentiments, err := s.history.SentimentBreakdown(r.Context(), since)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	count, err := s.history.CountSince(r.Context(), since)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "stats query failed")
		return
	}

	resp := statsResponse{Platforms: platforms, Sentiments: sentiments, Last24h: count}
	if resp.Platforms == nil {
		resp.Platforms = []models.PlatformSummary{}
	}
	if resp.Sentiments == nil {
		resp.Sentiments = []models.SentimentCount{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, models.StatusReport{
		Version:   s.version,
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		Provider:  s.coord.Provider(),
		Cache:     s.coord.CacheStats(),
		RateLimit: s.coord.RateLimitStatus(ratelimit.GlobalIdentity),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
