package layout

import "sierranative/internal/sierra"

type cacheEntry struct {
	Layout TypeLayout
	Err    *LayoutError
}

type cache struct {
	byType map[uint64]cacheEntry
}

func newCache() *cache {
	return &cache{byType: make(map[uint64]cacheEntry, 256)}
}

func (c *cache) get(id sierra.TypeID) (cacheEntry, bool) {
	if c == nil {
		return cacheEntry{}, false
	}
	l, ok := c.byType[id.ID]
	return l, ok
}

func (c *cache) put(id sierra.TypeID, e *cacheEntry) {
	if c == nil {
		return
	}
	if e == nil {
		delete(c.byType, id.ID)
		return
	}
	c.byType[id.ID] = *e
}

func (c *cache) len() int {
	if c == nil {
		return 0
	}
	return len(c.byType)
}
