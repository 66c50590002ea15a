package currency

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// cacheEntry represents a cached live rate.
type cacheEntry struct {
	expiry time.Time
	rate   decimal.Decimal
}

// rateCache provides thread-safe caching for live rates keyed by currency and day.
type rateCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newRateCache creates a new cache with the specified TTL.
func newRateCache(ttl time.Duration, now func() time.Time) *rateCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}

	cache := &rateCache{
		entries: make(map[string]cacheEntry),
		now:     now,
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

func cacheKey(currency string, day time.Time) string {
	return currency + "@" + day.Format(time.DateOnly)
}

// get retrieves a rate if it exists and hasn't expired.
func (c *rateCache) get(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return decimal.Decimal{}, false
	}

	return entry.rate, true
}

// set stores a rate.
func (c *rateCache) set(key string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		rate:   rate,
		expiry: c.now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *rateCache) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *rateCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// close stops the cleanup goroutine. Safe to call more than once.
func (c *rateCache) close() {
	c.once.Do(func() { close(c.stopCh) })
}
