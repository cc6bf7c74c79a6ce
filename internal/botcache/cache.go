// Package botcache resolves bot API keys through a short-lived in-process cache.
package botcache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

const (
	// DefaultTTL is how long a resolved bot stays cached.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries bounds the cache; the oldest insertion is evicted first.
	DefaultMaxEntries = 2000

	bearerPrefix = "Bearer "
)

var (
	// ErrMissingAuthorization means no usable Authorization header was sent.
	ErrMissingAuthorization = errors.New("missing bearer authorization")
	// ErrNotFound means no bot owns the presented API key.
	ErrNotFound = errors.New("bot not found for api key")
)

// Store loads a bot by exact API key. It returns gorm.ErrRecordNotFound when
// no bot matches.
type Store interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Bot, error)
}

// Observer receives cache lookup outcomes: "hit", "miss" or "not_found".
type Observer func(result string)

type entry struct {
	key       string
	bot       models.Bot
	expiresAt time.Time
	elem      *list.Element
}

// Cache maps API keys to bot snapshots.
type Cache struct {
	store    Store
	ttl      time.Duration
	max      int
	now      func() time.Time
	observer Observer

	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List
	// gen counts invalidations. A store read that overlaps one is not cached.
	gen uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }

// WithMaxEntries sets the entry bound.
func WithMaxEntries(n int) Option { return func(c *Cache) { c.max = n } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithObserver reports each lookup outcome, e.g. to a metrics counter.
func WithObserver(o Observer) Option { return func(c *Cache) { c.observer = o } }

// New builds a Cache in front of store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		ttl:     DefaultTTL,
		max:     DefaultMaxEntries,
		now:     time.Now,
		entries: make(map[string]*entry),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.max < 1 {
		c.max = 1
	}
	return c
}

// Resolve returns a copy of the bot owning apiKey. Only successful lookups are cached.
func (c *Cache) Resolve(ctx context.Context, apiKey string) (*models.Bot, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}

	if bot, ok := c.lookup(apiKey); ok {
		c.observe("hit")
		return bot, nil
	}

	gen := c.generation()
	bot, err := c.store.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.observe("not_found")
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve bot: %w", err)
	}
	c.observe("miss")
	c.put(apiKey, bot, gen)

	out := *bot
	return &out, nil
}

// Invalidate drops the cached snapshot for apiKey.
func (c *Cache) Invalidate(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if e, ok := c.entries[apiKey]; ok {
		c.remove(e)
	}
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops every entry.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]*entry)
	c.order.Init()
	return nil
}

func (c *Cache) lookup(apiKey string) (*models.Bot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[apiKey]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.remove(e)
		return nil, false
	}
	out := e.bot
	return &out, true
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// put caches bot unless an invalidation happened after gen was read.
func (c *Cache) put(apiKey string, bot *models.Bot, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}

	if old, ok := c.entries[apiKey]; ok {
		c.remove(old)
	}
	for len(c.entries) >= c.max {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*entry))
	}

	e := &entry{key: apiKey, bot: *bot, expiresAt: c.now().Add(c.ttl)}
	e.elem = c.order.PushBack(e)
	c.entries[apiKey] = e
}

func (c *Cache) remove(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}

func (c *Cache) observe(result string) {
	if c.observer != nil {
		c.observer(result)
	}
}

// ExtractAPIKey returns the token after "Bearer " in an Authorization header value.
func ExtractAPIKey(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingAuthorization
	}
	key := strings.TrimSpace(header[len(bearerPrefix):])
	if key == "" {
		return "", ErrMissingAuthorization
	}
	return key, nil
}
