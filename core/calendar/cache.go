package calendar

import (
	"sync"

	"github.com/kilianp07/slotplan/core/scoreboard"
)

type cacheEntry struct {
	board *scoreboard.Scoreboard[bool]
	refs  int
}

// Cache shares derived working hour scoreboards between WorkingHours values
// with the same pattern, timezone and frame. Entries are reference counted
// and dropped when the last holder releases them.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// Len returns the number of live shared scoreboards.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) acquire(key string, build func() *scoreboard.Scoreboard[bool]) *scoreboard.Scoreboard[bool] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.refs++
		return e.board
	}
	e := &cacheEntry{board: build(), refs: 1}
	c.entries[key] = e
	return e.board
}

func (c *Cache) retain(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.refs++
	}
}

func (c *Cache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.entries, key)
	}
}
