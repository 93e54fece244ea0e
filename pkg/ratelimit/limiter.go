package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/pagelens-ai/pagelens/pkg/models"
)

// ErrExceeded is returned when an identity has used its full window budget.
var ErrExceeded = errors.New("rate limit exceeded")

// GlobalIdentity is the shared identity used when callers are not
// distinguished from one another.
const GlobalIdentity = "global"

// Limiter admits backend analysis calls under a fixed-window budget, one
// window per caller identity. A window that has lapsed is replaced, never
// extended: the admission that replaces it becomes the new window's first.
// State is in-memory only and cleared by process restart.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]entry
}

type entry struct {
	count int
	start time.Time
}

// New creates a Limiter admitting limit calls per identity per window.
// The limit must be positive.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]entry),
	}
}

// Allow consumes one admission for identity, returning ErrExceeded when the
// active window is exhausted. Rejection is immediate and final for that
// call; there is no queueing.
func (l *Limiter) Allow(identity string) error {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identity]
	if !ok || now.Sub(e.start) > l.window {
		l.entries[identity] = entry{count: 1, start: now}
		return nil
	}
	if e.count >= l.limit {
		return ErrExceeded
	}
	e.count++
	l.entries[identity] = e
	return nil
}

// Status reports the active window for identity without consuming any
// admission budget.
func (l *Limiter) Status(identity string) models.RateLimitStatus {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	st := models.RateLimitStatus{
		Enabled:   true,
		Identity:  identity,
		Limit:     l.limit,
		Remaining: l.limit,
	}
	e, ok := l.entries[identity]
	if !ok || now.Sub(e.start) > l.window {
		return st
	}
	st.Used = e.count
	st.Remaining = l.limit - e.count
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	st.ResetAt = e.start.Add(l.window)
	return st
}

// SetLimits changes the admission budget. Windows already in flight keep
// their start time but are judged against the new limit and window length
// from the next call on.
func (l *Limiter) SetLimits(limit int, window time.Duration) {
	l.mu.Lock()
	l.limit = limit
	l.window = window
	l.mu.Unlock()
}
