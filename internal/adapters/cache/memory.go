package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/okian/tagtrail/pkg/metrics"
)

var _ Cache = (*MemoryCache)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu         sync.RWMutex
	items      map[string]entry
	now        func() time.Time
	name       string
	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates a MemoryCache.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]entry),
		now:   time.Now,
		name:  "memory",
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sweepEvery > 0 {
		go c.sweep()
	}
	return c
}

func (c *MemoryCache) lookup(key string) (entry, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

// Has reports whether key holds an unexpired value.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := c.lookup(key)
	return ok, nil
}

// Get decodes the cached value into dst.
func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	e, ok := c.lookup(key)
	metrics.RecordCacheLookup(c.name, ok)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.value, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v for ttl. A non-positive ttl deletes the key.
func (c *MemoryCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = entry{value: b, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) purge() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

func (c *MemoryCache) sweep() {
	t := time.NewTicker(c.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.purge()
		}
	}
}

// Close stops the sweeper.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}
