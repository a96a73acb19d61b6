package behavior

import "sync"

type cacheEntry struct {
	ctx    *Context
	misses int // consecutive active-set snapshots the construct was absent from
}

// Cache maps construct ids to their behavior contexts across frames.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[uint64]*cacheEntry)}
}

// GetOrDefault returns the cached context of id, or mk() when there is none.
// The default is not stored; Set does that at the end of the frame.
func (c *Cache) GetOrDefault(id uint64, mk func() *Context) *Context {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if ok {
		return e.ctx
	}
	return mk()
}

func (c *Cache) Get(id uint64) (*Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.ctx, true
}

// Set stores ctx under id, replacing any previous entry.
func (c *Cache) Set(id uint64, ctx *Context) {
	c.mu.Lock()
	c.entries[id] = &cacheEntry{ctx: ctx}
	c.mu.Unlock()
}

func (c *Cache) Delete(id uint64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep is called once per published active set. Entries present in active
// have their miss counter reset; absent entries accumulate a miss and are
// evicted once they reach maxMisses. Returns the evicted ids. maxMisses <= 0
// disables eviction.
func (c *Cache) Sweep(active []Handle, maxMisses int) []uint64 {
	if maxMisses <= 0 {
		return nil
	}
	present := make(map[uint64]struct{}, len(active))
	for _, h := range active {
		present[h.ConstructID] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var evicted []uint64
	for id, e := range c.entries {
		if _, ok := present[id]; ok {
			e.misses = 0
			continue
		}
		e.misses++
		if e.misses >= maxMisses {
			delete(c.entries, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
