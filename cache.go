package reusesocketd

import (
	"container/list"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// cacheKey is the 6-tuple identifying a single cached listening socket.
// All components participate in equality, so it must stay comparable
// (string/int fields only) to be usable as a map key.
type cacheKey struct {
	UID         string
	Family      int
	SockType    int
	Proto       int
	CanonName   string
	SockaddrKey string // a canonical string form of the resolved sockaddr
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s:%d/%d/%d %s@%s", k.UID, k.Family, k.SockType, k.Proto, k.CanonName, k.SockaddrKey)
}

// cacheEntry is the value half of the cache: a listening socket and the
// time it was last touched (created or hit).
type cacheEntry struct {
	key         cacheKey
	file        *os.File
	lastTouched time.Time
}

// socketCache is a keyed LRU store with two orderings over the same
// doubly-linked list: recency (front = most-recently-used) and, because
// lastTouched is updated on every move-to-front, age order correlates with
// list order, so a single list serves both walks described in spec §4.4.
//
// The event loop goroutine is the only mutator -- spec §5's "no locking is
// required because no concurrent access occurs" holds for Get/Insert/Remove/
// EvictStale/Reset, all of which only ever run sequentially from Daemon.Run.
// The admin HTTP endpoint and the InfluxDB metrics reporter are additive
// background goroutines, though, and both read cache occupancy via Stats()
// while the loop goroutine may concurrently be mutating order/index; mu
// guards exactly that reader/mutator boundary.
type socketCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	index    map[cacheKey]*list.Element
	logger   *log.Logger
	verbose  bool
}

func newSocketCache(capacity int, logger *log.Logger, verbose bool) *socketCache {
	return &socketCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[cacheKey]*list.Element),
		logger:   logger,
		verbose:  verbose,
	}
}

// Len returns the number of cached sockets. Safe to call concurrently with
// the event loop's mutations (admin.go's statsHandler and metrics.go's
// reporter both do).
func (c *socketCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the cache's configured upper bound. capacity is set once
// in newSocketCache and never mutated afterward, but this still goes through
// mu so callers never need to reason about which socketCache fields are
// safe to read bare.
func (c *socketCache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Get looks up key, promoting it to most-recently-used and refreshing
// lastTouched on a hit.
func (c *socketCache) Get(key cacheKey) (*os.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.index[key]
	if !ok {
		if c.verbose {
			c.logger.Printf("cache miss for %s", key)
		}
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	entry.lastTouched = time.Now()
	c.order.MoveToFront(elem)
	if c.verbose {
		c.logger.Printf("cache hit for %s", key)
	}
	return entry.file, true
}

// Insert adds a freshly bound socket for key, evicting the least-recently
// used entry first if the cache is at capacity. Insert must only be called
// after a Get for the same key returned false.
func (c *socketCache) Insert(key cacheKey, file *os.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity > 0 && c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	entry := &cacheEntry{key: key, file: file, lastTouched: time.Now()}
	elem := c.order.PushFront(entry)
	c.index[key] = elem
}

// evictOldest closes and removes the single least-recently-used entry.
func (c *socketCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	c.logger.Printf("socket cache reached capacity %d; evicting %s", c.capacity, entry.key)
	c.removeElement(elem)
}

// Remove evicts key unconditionally, used to roll back a freshly created
// entry whose descriptor transfer to the client failed.
func (c *socketCache) Remove(key cacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.index[key]
	if !ok {
		return
	}
	c.removeElement(elem)
}

func (c *socketCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.index, entry.key)
	if err := entry.file.Close(); err != nil {
		c.logger.Printf("error closing evicted socket %s: %v", entry.key, err)
	}
}

// EvictStale walks the cache from the least-recently-used end, closing and
// removing every entry whose lastTouched is older than now-keepalive. It
// stops at the first entry that is still fresh, since age order and
// recency order coincide (spec §4.4, §9 open question).
func (c *socketCache) EvictStale(keepalive time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	threshold := now.Add(-keepalive)
	var evicted []cacheKey
	for elem := c.order.Back(); elem != nil; {
		entry := elem.Value.(*cacheEntry)
		if !entry.lastTouched.Before(threshold) {
			break
		}
		prev := elem.Prev()
		evicted = append(evicted, entry.key)
		c.removeElement(elem)
		elem = prev
	}
	if len(evicted) > 0 {
		c.logger.Printf("evicting %d stale socket(s) (keepalive %s): %v", len(evicted), keepalive, evicted)
	}
}

// Reset closes every cached descriptor and empties the cache, used to
// service the reset signal (SIGHUP) before the next client is accepted.
func (c *socketCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*cacheEntry)
		if err := entry.file.Close(); err != nil {
			c.logger.Printf("error closing socket %s during reset: %v", entry.key, err)
		}
	}
	c.order.Init()
	c.index = make(map[cacheKey]*list.Element)
}
