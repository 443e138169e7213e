// Package agentcache keeps constructed agents keyed by durable session key,
// bounded by capacity (least recently used first) and idle time.
package agentcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
	"github.com/kube-rca/agent/internal/metrics"
)

// Config bounds the cache. Capacity <= 0 disables caching; TTL <= 0 disables
// idle expiry.
type Config struct {
	Capacity int
	TTL      time.Duration
}

// Entry is a cached agent. Invocations on one entry are serialised.
type Entry struct {
	key        string
	agent      outbound.Agent
	mu         sync.Mutex
	lastAccess time.Time
}

// Key returns the durable session key the entry was built for.
func (e *Entry) Key() string { return e.key }

// Invoke runs one prompt while holding the entry lock.
func (e *Entry) Invoke(ctx context.Context, prompt, runtimeSessionID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agent.Invoke(ctx, prompt, runtimeSessionID)
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg     Config
	factory outbound.AgentFactory
	now     func() time.Time

	mu  sync.Mutex
	lru *simplelru.LRU[string, *Entry]
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache that builds missing agents with factory.
func New(cfg Config, factory outbound.AgentFactory, opts ...Option) (*Cache, error) {
	if factory == nil {
		return nil, fmt.Errorf("agent factory is required")
	}
	c := &Cache{cfg: cfg, factory: factory, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Capacity > 0 {
		lru, err := simplelru.NewLRU[string, *Entry](cfg.Capacity, nil)
		if err != nil {
			return nil, fmt.Errorf("creating lru: %w", err)
		}
		c.lru = lru
	}
	return c, nil
}

// GetOrCreate returns the cached entry for key, building one on a miss.
// A failed construction leaves the cache unchanged.
func (c *Cache) GetOrCreate(ctx context.Context, key string) (*Entry, error) {
	if c.lru == nil {
		agent, err := c.factory.NewAgent(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("creating agent for %s: %w", key, err)
		}
		metrics.RecordAgentCacheEvent("bypass")
		return &Entry{key: key, agent: agent, lastAccess: c.now()}, nil
	}

	c.mu.Lock()
	now := c.now()
	c.sweepLocked(now)
	if e, ok := c.lru.Get(key); ok {
		e.lastAccess = now
		c.mu.Unlock()
		metrics.RecordAgentCacheEvent("hit")
		return e, nil
	}
	c.mu.Unlock()

	metrics.RecordAgentCacheEvent("miss")
	agent, err := c.factory.NewAgent(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("creating agent for %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now = c.now()
	// Another caller may have inserted the same key while we were building.
	if e, ok := c.lru.Get(key); ok {
		e.lastAccess = now
		return e, nil
	}

	e := &Entry{key: key, agent: agent, lastAccess: now}
	if evicted := c.lru.Add(key, e); evicted {
		metrics.RecordAgentCacheEvent("evict_capacity")
	}
	return e, nil
}

// sweepLocked removes idle entries, oldest first, stopping at the first
// entry still within TTL.
func (c *Cache) sweepLocked(now time.Time) {
	if c.cfg.TTL <= 0 {
		return
	}
	for {
		_, e, ok := c.lru.GetOldest()
		if !ok || now.Sub(e.lastAccess) <= c.cfg.TTL {
			return
		}
		c.lru.RemoveOldest()
		metrics.RecordAgentCacheEvent("evict_ttl")
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Contains reports whether key is cached without touching its recency.
func (c *Cache) Contains(key string) bool {
	if c.lru == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}
