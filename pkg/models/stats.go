package models

import "time"

// CacheStats reports analysis cache performance counters.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// RateLimitStatus is a point-in-time snapshot of one limiter window. When no
// window is active for the identity, Used is zero and ResetAt is the zero
// time.
type RateLimitStatus struct {
	Enabled   bool      `json:"enabled"`
	Identity  string    `json:"identity"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// StatusReport is the service status document.
type StatusReport struct {
	Version   string          `json:"version"`
	UptimeSec int64           `json:"uptime_sec"`
	Provider  string          `json:"provider"`
	Cache     CacheStats      `json:"cache"`
	RateLimit RateLimitStatus `json:"rate_limit"`
}
