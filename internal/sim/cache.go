package sim

import (
	"sort"
	"sync"
)

// Cache maps a tab id to its latest Result.
type Cache struct {
	mu sync.RWMutex
	m  map[int]*Result
}

type Entry struct {
	TabID  int
	Result *Result
}

func NewCache() *Cache {
	return &Cache{m: make(map[int]*Result)}
}

func (c *Cache) Put(tabID int, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[tabID] = r
}

func (c *Cache) Get(tabID int) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.m[tabID]
	return r, ok
}

func (c *Cache) Delete(tabID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, tabID)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Entries returns every cached result in ascending tab id order.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.m))
	for id, r := range c.m {
		out = append(out, Entry{TabID: id, Result: r})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}
