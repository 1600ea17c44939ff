package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/debuglog"
)

// Class selects the expiry applied to a cached value.
type Class string

const (
	ClassSuccess   Class = "success"
	ClassFailure   Class = "failure"
	ClassDiscovery Class = "discovery"
)

// Value is anything the cache can account for.
type Value interface {
	ApproxSize() int
}

// entryOverhead approximates per-entry bookkeeping (list element, map slot, timestamps).
const entryOverhead = 96

type entry struct {
	key       string
	value     Value
	class     Class
	createdAt time.Time
	ttl       time.Duration
	size      int64
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.createdAt.Add(e.ttl))
}

// Cache is a TTL cache bounded by entry count and an estimated byte budget.
// Insertion under pressure drops expired entries first and then the least
// recently used ones. All methods are safe for concurrent use and never fail.
type Cache struct {
	mu         sync.Mutex
	ttl        map[Class]time.Duration
	maxEntries int
	maxBytes   int64
	used       int64
	items      map[string]*list.Element
	lru        *list.List

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
	log *logrus.Entry
}

type Option func(*Cache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(cfg config.CacheConfig, opts ...Option) *Cache {
	c := &Cache{
		ttl: map[Class]time.Duration{
			ClassSuccess:   cfg.SuccessTTL,
			ClassFailure:   cfg.FailureTTL,
			ClassDiscovery: cfg.DiscoveryTTL,
		},
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
		log:        debuglog.Component("cache"),
	}
	if c.ttl[ClassSuccess] <= 0 {
		c.ttl[ClassSuccess] = time.Hour
	}
	if c.ttl[ClassFailure] <= 0 {
		c.ttl[ClassFailure] = 5 * time.Minute
	}
	if c.ttl[ClassDiscovery] <= 0 {
		c.ttl[ClassDiscovery] = 15 * time.Minute
	}
	if c.maxEntries <= 0 {
		c.maxEntries = 500
	}
	if c.maxBytes <= 0 {
		c.maxBytes = 4 << 20
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the cache key for a normalized address and a purpose such as
// "validate" or "discovery".
func Key(normalizedURL, purpose string) string {
	return purpose + "|" + normalizedURL
}

// TTL returns the expiry used for class.
func (c *Cache) TTL(class Class) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl[class]
}

// Get returns the live value for key. Expired entries count as misses and
// are removed.
func (c *Cache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	if e.expired(c.now()) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Set stores value under key with the TTL of class. A value that could never
// fit in the byte budget is not stored.
func (c *Cache) Set(key string, value Value, class Class) {
	if value == nil {
		return
	}
	size := int64(value.ApproxSize() + len(key) + entryOverhead)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	if size >= c.maxBytes {
		c.log.WithField("key", key).Warnf("Value of %d bytes exceeds cache budget, not stored", size)
		return
	}

	ttl, ok := c.ttl[class]
	if !ok {
		ttl = c.ttl[ClassFailure]
	}

	if c.used+size >= c.maxBytes || len(c.items) >= c.maxEntries {
		c.purgeExpired(c.now())
	}
	for (c.used+size >= c.maxBytes || len(c.items) >= c.maxEntries) && c.lru.Len() > 0 {
		c.removeElement(c.lru.Back())
		c.evictions++
	}

	e := &entry{
		key:       key,
		value:     value,
		class:     class,
		createdAt: c.now(),
		ttl:       ttl,
		size:      size,
	}
	c.items[key] = c.lru.PushFront(e)
	c.used += size
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Cleanup removes every expired entry and reports how many were dropped.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.purgeExpired(c.now())
	if n > 0 {
		c.log.Debugf("Cleanup removed %d expired entries", n)
	}
	return n
}

// Clear drops all entries and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.used = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (c *Cache) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

func (c *Cache) purgeExpired(now time.Time) int {
	var n int
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry).expired(now) {
			c.removeElement(elem)
			n++
		}
		elem = prev
	}
	return n
}

func (c *Cache) removeElement(elem *list.Element) {
	e := c.lru.Remove(elem).(*entry)
	delete(c.items, e.key)
	c.used -= e.size
}
