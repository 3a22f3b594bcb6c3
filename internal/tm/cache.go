package tm

import (
	"context"
	"fmt"
	"sync"

	"l10nkit/internal/resource"

	"github.com/rs/zerolog"
)

// Lister is a store that can list the entries of a locale pair.
type Lister interface {
	Entries(ctx context.Context, src, trg resource.LocaleID) ([]Entry, error)
}

// Cache puts an in-memory layer of exact matches in front of a Store.
// Fuzzy lookups always reach the store.
type Cache struct {
	store Store
	log   zerolog.Logger

	mu     sync.RWMutex
	memory map[string]Entry // entry key -> entry
	hits   int
	misses int
}

// NewCache wraps store.
func NewCache(store Store, log zerolog.Logger) *Cache {
	return &Cache{
		store:  store,
		log:    log,
		memory: make(map[string]Entry),
	}
}

// Get returns the exact entry for source, checking memory first.
func (c *Cache) Get(ctx context.Context, source string, src, trg resource.LocaleID) (Entry, bool) {
	key := entryKey(source, src, trg)

	c.mu.RLock()
	e, ok := c.memory[key]
	c.mu.RUnlock()
	if ok {
		c.count(true)
		return e, true
	}
	c.count(false)

	matches, err := c.store.Lookup(ctx, Query{Source: source, SourceLocale: src, TargetLocale: trg, Threshold: 1, Limit: 1})
	if err != nil {
		c.log.Warn().Err(err).Msg("TM lookup failed")
		return Entry{}, false
	}
	if len(matches) == 0 {
		return Entry{}, false
	}

	c.mu.Lock()
	c.memory[key] = matches[0].Entry
	c.mu.Unlock()
	return matches[0].Entry, true
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

// Stats returns the number of memory hits and misses so far.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Put stores entries in memory and in the store.
func (c *Cache) Put(ctx context.Context, entries []Entry) error {
	c.mu.Lock()
	for _, e := range entries {
		c.memory[e.Key()] = e
	}
	c.mu.Unlock()

	if err := c.store.Put(ctx, entries); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Lookup serves exact-only queries from memory and passes the rest on.
func (c *Cache) Lookup(ctx context.Context, q Query) ([]Match, error) {
	if q.threshold() >= 1 {
		e, ok := c.Get(ctx, q.Source, q.SourceLocale, q.TargetLocale)
		if !ok {
			return nil, nil
		}
		return []Match{{Entry: e, Score: 1}}, nil
	}
	matches, err := c.store.Lookup(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 && matches[0].Exact() {
		c.mu.Lock()
		c.memory[q.key()] = matches[0].Entry
		c.mu.Unlock()
	}
	return matches, nil
}

// Preload loads every entry of a locale pair into memory when the store
// can list them.
func (c *Cache) Preload(ctx context.Context, src, trg resource.LocaleID) error {
	lister, ok := c.store.(Lister)
	if !ok {
		return nil
	}
	entries, err := lister.Entries(ctx, src, trg)
	if err != nil {
		return fmt.Errorf("preload tm: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.memory[e.Key()] = e
	}
	c.log.Info().Int("count", len(entries)).Msg("Preloaded translation memory")
	return nil
}

func (c *Cache) Count(ctx context.Context) (int, error) { return c.store.Count(ctx) }

func (c *Cache) Close() error { return c.store.Close() }
