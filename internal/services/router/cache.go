package router

import "sync"

type cacheKey struct {
	source TokenID
	target TokenID
}

// cacheEntry holds the last path found for a (source, target) pair together
// with the filters it was searched under. Only the path is kept: its value
// is always recomputed from the live edges.
type cacheEntry struct {
	nodes       []TokenID
	exclude     idSet
	includeOnly idSet
}

// reusableFor reports whether a path found under the entry's filters is
// still the best answer for a query under the given filters. That holds
// when the new query is at least as strict: it excludes everything the
// entry excluded, and its include list (when set) is within the entry's.
func (e *cacheEntry) reusableFor(exclude, includeOnly idSet) bool {
	if !e.exclude.subsetOf(exclude) {
		return false
	}
	if len(e.includeOnly) == 0 {
		return true
	}
	// an empty include list is unrestricted, looser than any set list
	return len(includeOnly) > 0 && includeOnly.subsetOf(e.includeOnly)
}

// pathCache is safe for concurrent use.
type pathCache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

func newPathCache() *pathCache {
	return &pathCache{entries: make(map[cacheKey]*cacheEntry)}
}

// get returns the cached path for key when it may be reused under the
// given filters. An entry that may not is dropped.
func (c *pathCache) get(key cacheKey, exclude, includeOnly idSet) ([]TokenID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.reusableFor(exclude, includeOnly) {
		delete(c.entries, key)
		return nil, false
	}
	return e.nodes, true
}

func (c *pathCache) put(key cacheKey, nodes []TokenID, exclude, includeOnly idSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		nodes:       nodes,
		exclude:     exclude.clone(),
		includeOnly: includeOnly.clone(),
	}
}

func (c *pathCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *pathCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
