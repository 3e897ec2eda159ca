// Package blockcache implements the client coherence agent's block
// cache: an LRU over (file, block index) keyed entries, bounded by a
// configured block count, where a dirty block must be written back to
// its storage node before it is evicted.
//
// A block is either clean (served from its last-read contents) or
// dirty (user bytes applied, must flush before its covering token goes
// away). This cache needs no separate lease/upgrade state machine: the
// token layer above it (internal/tokenset) already guarantees a block
// can only be dirtied while this client holds the covering WRITE
// token, see DESIGN.md.
package blockcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/pfs-io/pfs/internal/wire"
)

// Block is one cached block's content and state.
type Block struct {
	Data  []byte
	Dirty bool
	Mode  wire.Mode
}

type key struct {
	file  string
	index int64
}

type entry struct {
	key   key
	block Block
}

// WritebackFunc flushes one dirty block to its storage node.
type WritebackFunc func(file string, blockIndex int64, data []byte) error

// Cache is an LRU block cache bounded by Capacity blocks.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List // front = most recently used
	elems    map[key]*list.Element
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		panic(fmt.Sprintf("blockcache: capacity must be positive, got %d", capacity))
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		elems:    make(map[key]*list.Element),
	}
}

// Lookup returns the cached block for (file, index) and bumps its
// recency, or reports a miss.
func (c *Cache) Lookup(file string, index int64) (Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.elems[key{file, index}]
	if !ok {
		return Block{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).block, true
}

// Admit inserts a freshly fetched (or newly-written) block into the
// cache, evicting the least-recently-used block if the cache is at
// capacity. If the evicted block was dirty, writeback is called with
// its data before it is dropped.
//
// Admit panics if writeback is nil and an eviction turns out to be
// necessary while a dirty block is the victim; callers always have a
// real writeback path (there is no valid eviction without one).
func (c *Cache) Admit(file string, index int64, data []byte, mode wire.Mode, writeback WritebackFunc) (evicted bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{file, index}
	if el, ok := c.elems[k]; ok {
		el.Value.(*entry).block = Block{Data: data, Mode: mode}
		c.ll.MoveToFront(el)
		return false, nil
	}

	if c.ll.Len() >= c.capacity {
		if err := c.evictOldestLocked(writeback); err != nil {
			return false, err
		}
		evicted = true
	}

	el := c.ll.PushFront(&entry{key: k, block: Block{Data: data, Mode: mode}})
	c.elems[k] = el
	return evicted, nil
}

func (c *Cache) evictOldestLocked(writeback WritebackFunc) error {
	victim := c.ll.Back()
	if victim == nil {
		return nil
	}
	e := victim.Value.(*entry)

	if e.block.Dirty {
		if writeback == nil {
			panic("blockcache: dirty eviction with no writeback function")
		}
		if err := writeback(e.key.file, e.key.index, e.block.Data); err != nil {
			return fmt.Errorf("writeback on eviction of %s[%d]: %w", e.key.file, e.key.index, err)
		}
	}

	c.ll.Remove(victim)
	delete(c.elems, e.key)
	return nil
}

// MarkDirty flips dirty_flag for an already-cached block after a write
// has been applied to its bytes.
func (c *Cache) MarkDirty(file string, index int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.elems[key{file, index}]; ok {
		el.Value.(*entry).block.Dirty = true
	}
}

// InvalidateRange drops every cached block of file whose byte range
// (given blockSize) intersects [start,end], writing back dirty ones
// first. Used by REVOKE handling and, through InvalidateFile, by Close.
// Returns how many blocks were written back and how many were
// invalidated.
func (c *Cache) InvalidateRange(file string, start, end int64, blockSize int64, writeback WritebackFunc) (writebacks, invalidations int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.key.file != file {
			continue
		}
		blockStart := e.key.index * blockSize
		blockEnd := blockStart + blockSize - 1
		if blockStart > end || blockEnd < start {
			continue
		}
		toRemove = append(toRemove, el)
	}

	for _, el := range toRemove {
		e := el.Value.(*entry)
		if e.block.Dirty {
			if err := writeback(e.key.file, e.key.index, e.block.Data); err != nil {
				return writebacks, invalidations, fmt.Errorf("writeback on revoke of %s[%d]: %w", e.key.file, e.key.index, err)
			}
			writebacks++
		}
		c.ll.Remove(el)
		delete(c.elems, e.key)
		invalidations++
	}

	return writebacks, invalidations, nil
}

// InvalidateFile flushes and drops every cached block of file,
// unconditionally. Used by Close.
func (c *Cache) InvalidateFile(file string, writeback WritebackFunc) (writebacks, invalidations int, err error) {
	return c.InvalidateRange(file, 0, maxInt64, 1, writeback)
}

const maxInt64 = 1<<63 - 1
