// Package audiocache caches synthesized audio keyed by
// (provider, voice, text). Synthesis is deterministic for a given key
// within the cache TTL, so repeated prompts (a fixed greeting, the retry
// prompt) skip the vendor round-trip. Eviction is coarse: the whole
// cache is flushed on a fixed interval, which bounds memory without
// per-entry bookkeeping.
package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type entry struct {
	data      []byte
	createdAt time.Time
}

// Cache is a time-bounded audio cache.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	order      []string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	cron *cron.Cron
}

// Options configures a Cache.
type Options struct {
	// TTL is the maximum age before an entry is considered stale.
	TTL time.Duration
	// FlushInterval is how often the whole cache is flushed.
	FlushInterval time.Duration
	// MaxEntries bounds the cache size; the oldest entry is dropped
	// when the bound is hit.
	MaxEntries int
}

// New creates a cache. Call Start to begin the recurring flush.
func New(opts Options) (*Cache, error) {
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = time.Hour
	}
	if opts.MaxEntries == 0 {
		opts.MaxEntries = 256
	}

	c := &Cache{
		entries:    make(map[string]entry),
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        time.Now,
		cron:       cron.New(),
	}

	spec := fmt.Sprintf("@every %s", opts.FlushInterval)
	if _, err := c.cron.AddFunc(spec, func() {
		n := c.Flush()
		if n > 0 {
			log.Printf("[AudioCache] flushed %d entries", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule cache flush: %w", err)
	}
	return c, nil
}

// Start begins the recurring flush.
func (c *Cache) Start() {
	c.cron.Start()
}

// Stop halts the recurring flush.
func (c *Cache) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// cacheKey collapses (provider, voice, text) into a fixed-size key.
func cacheKey(provider, voice, text string) string {
	h := sha256.Sum256([]byte(provider + "\x00" + voice + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Get returns the cached audio for the key, or ok=false on a miss.
// Entries older than the TTL are treated as misses even before the
// next flush.
func (c *Cache) Get(provider, voice, text string) ([]byte, bool) {
	key := cacheKey(provider, voice, text)

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.data, true
}

// Put stores synthesized audio under the key.
func (c *Cache) Put(provider, voice, text string, data []byte) {
	if len(data) == 0 {
		return
	}
	key := cacheKey(provider, voice, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry{
		data:      append([]byte(nil), data...),
		createdAt: c.now(),
	}
}

// Flush clears the whole cache and returns the number of entries dropped.
func (c *Cache) Flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]entry)
	c.order = nil
	return n
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
