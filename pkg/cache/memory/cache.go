package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pagelens-ai/pagelens/pkg/models"
)

// Cache is an exact-match analysis result cache held in process memory,
// keyed by content hash. Entries are judged against the TTL at lookup time;
// an entry nobody reads again survives until an overwrite, Clear, or the
// optional background sweeper. There is no size bound and no persistence:
// process restart clears all state.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	hits    atomic.Int64
	misses  atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	result   models.AnalysisResult
	storedAt time.Time
}

// New creates a Cache whose entries stay fresh for ttl after insertion.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
}

// Get retrieves a cached result. It returns false if the hash is absent or
// the entry has aged past the TTL; expired entries are removed on the spot.
func (c *Cache) Get(contentHash string) (models.AnalysisResult, bool) {
	c.mu.Lock()
	e, ok := c.entries[contentHash]
	if ok && time.Since(e.storedAt) >= c.ttl {
		delete(c.entries, contentHash)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return models.AnalysisResult{}, false
	}
	c.hits.Add(1)
	return e.result, true
}

// Put stores a result under contentHash, overwriting any previous entry.
func (c *Cache) Put(contentHash string, result models.AnalysisResult) {
	c.mu.Lock()
	c.entries[contentHash] = entry{result: result, storedAt: time.Now()}
	c.mu.Unlock()
}

// Stats returns cache performance counters. Entries counts everything still
// held, including entries that have expired but not yet been dropped.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	n := int64(len(c.entries))
	c.mu.Unlock()

	return models.CacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Clear removes cache entries and reports how many were removed. If
// expiredOnly is true, only entries past the TTL are removed.
func (c *Cache) Clear(expiredOnly bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !expiredOnly {
		n := len(c.entries)
		c.entries = make(map[string]entry)
		return n
	}

	var n int
	for h, e := range c.entries {
		if time.Since(e.storedAt) >= c.ttl {
			delete(c.entries, h)
			n++
		}
	}
	return n
}

// SetTTL changes the freshness horizon. Existing entries carry no per-entry
// deadline, so they are re-judged against the new TTL on their next lookup.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// TTL returns the current freshness horizon.
func (c *Cache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// StartSweeper launches a goroutine that drops expired entries every
// interval. Non-positive intervals are a no-op: expiry then happens only
// lazily on lookup. Stop terminates the sweeper.
func (c *Cache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				c.Clear(true)
			case <-c.stop:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop terminates the background sweeper if one is running. Safe to call
// more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
