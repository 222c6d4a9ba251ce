package internal

import "sync"

// Cache holds loaded portfolios by ID. Entries are never evicted while the
// cache is open.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Portfolio
}

func NewCache() *Cache {
	return &Cache{
		items: make(map[string]*Portfolio),
	}
}

func (c *Cache) Get(id string) (*Portfolio, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[id]
	return p, ok
}

func (c *Cache) Set(id string, p *Portfolio) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		return
	}
	c.items[id] = p
}

// LoadAll bulk-inserts portfolios, used for warmup at startup.
func (c *Cache) LoadAll(initial map[string]*Portfolio) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		return
	}
	for k, v := range initial {
		c.items[k] = v
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close drops every entry. Sets after Close are ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
