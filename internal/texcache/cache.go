// Package texcache implements the texture cache: the frame-index keyed map of
// resident textures, the entry state machine, and LRU-biased eviction under
// an entry cap and a resident-byte budget.
package texcache

import (
	"container/list"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framelab/texstream/internal/rawcodec"
	"github.com/framelab/texstream/internal/resource"
)

// State is the lifecycle state of a cache entry.
type State uint8

const (
	StatePending State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is a caller-facing snapshot of one entry. The cache retains exclusive
// ownership of the entry itself and of the GPU handle's disposal.
type View struct {
	Frame        int
	State        State
	Handle       any
	ByteSize     int64
	LastAccessed int64
	Err          error
}

// entry is one cached frame. Only Ready entries sit on the recency chain,
// which makes "never evict in-flight work" structural rather than checked.
type entry struct {
	frame         int
	state         State
	handle        any
	raw           []byte // retained for re-binding, possibly compressed
	rawCompressed bool
	byteSize      int64
	lastAccessed  int64
	err           error
	done          chan struct{} // closed on Ready or Failed
	elem          *list.Element // nil until Ready
}

func (e *entry) view() View {
	return View{
		Frame:        e.frame,
		State:        e.state,
		Handle:       e.handle,
		ByteSize:     e.byteSize,
		LastAccessed: e.lastAccessed,
		Err:          e.err,
	}
}

// Cache owns every resident texture. It is the single point of disposal for
// GPU handles: handles leave only through the destroy callback.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	items      map[int]*entry
	recency    *list.List // front = most recently accessed Ready entry
	rc         *resource.Controller
	codec      rawcodec.Codec
	destroy    func(handle any) // best-effort, must not panic
	logger     *slog.Logger

	hits             atomic.Int64
	misses           atomic.Int64
	evictions        atomic.Int64
	policyViolations atomic.Int64
}

// New creates a texture cache. destroy is invoked for every handle the cache
// releases (eviction, rebind replacement, Clear); it runs with the cache lock
// held and must not call back into the cache.
func New(maxEntries int, rc *resource.Controller, codec rawcodec.Codec, destroy func(handle any), logger *slog.Logger) *Cache {
	if codec == nil {
		codec = rawcodec.Noop{}
	}
	return &Cache{
		maxEntries: maxEntries,
		items:      make(map[int]*entry),
		recency:    list.New(),
		rc:         rc,
		codec:      codec,
		destroy:    destroy,
		logger:     logger,
	}
}

// Get looks up frame. A present entry counts as a hit and refreshes its
// access time; Ready entries also move to the front of the recency chain.
// Get never triggers loading.
func (c *Cache) Get(frame int) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[frame]
	if !ok {
		c.misses.Add(1)
		return View{}, false
	}

	c.hits.Add(1)
	e.lastAccessed = time.Now().UnixNano()
	if e.elem != nil {
		c.recency.MoveToFront(e.elem)
	}
	return e.view(), true
}

// Peek looks up frame without touching access time or hit/miss counters.
// Used for residency checks that are not user accesses (preload filtering).
func (c *Cache) Peek(frame int) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[frame]
	if !ok {
		return View{}, false
	}
	return e.view(), true
}

// InsertLoading creates a Loading placeholder for frame. If any entry for
// frame already exists the existing entry's completion channel is returned
// with created=false; the caller must not start a second load. This enforces
// at most one concurrent load per frame.
func (c *Cache) InsertLoading(frame int) (done <-chan struct{}, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[frame]; ok {
		return e.done, false
	}

	e := &entry{
		frame:        frame,
		state:        StateLoading,
		lastAccessed: time.Now().UnixNano(),
		done:         make(chan struct{}),
	}
	c.items[frame] = e
	return e.done, true
}

// Complete transitions frame from Loading to Ready, records its size,
// retains the raw bytes for re-binding, and evaluates eviction. Returns
// false if no Loading placeholder exists (the entry was cleared while the
// load was in flight); the caller then owns the handle and must destroy it.
func (c *Cache) Complete(frame int, raw []byte, handle any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[frame]
	if !ok || e.state != StateLoading {
		return false
	}

	stored, compressed := c.codec.Encode(raw)
	e.raw = stored
	e.rawCompressed = compressed
	e.handle = handle
	e.byteSize = int64(len(raw))
	e.state = StateReady
	e.lastAccessed = time.Now().UnixNano()
	e.elem = c.recency.PushFront(e)
	c.rc.AddMemory(e.byteSize)
	close(e.done)

	c.evictLocked()
	return true
}

// Fail transitions frame to Failed and drops the placeholder so a later
// request may retry. Waiters observe the failure through the entry's
// completion channel and error.
func (c *Cache) Fail(frame int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[frame]
	if !ok || e.state != StateLoading {
		return
	}

	e.state = StateFailed
	e.err = err
	close(e.done)
	delete(c.items, frame)
}

// EvictIfNeeded applies the eviction policy: whenever the entry count
// exceeds maxEntries or resident bytes exceed the budget, Ready entries are
// evicted in least-recently-accessed order until the count is at or below
// floor(maxEntries*0.8) and bytes are at or below budget. Loading entries
// are never evicted. Called after every completion and by the maintenance
// sweep.
func (c *Cache) EvictIfNeeded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
}

func (c *Cache) evictLocked() {
	if len(c.items) <= c.maxEntries && !c.rc.OverBudget() {
		return
	}

	target := c.maxEntries * 8 / 10
	for len(c.items) > target || c.rc.OverBudget() {
		back := c.recency.Back()
		if back == nil {
			if c.rc.OverBudget() {
				// Nothing evictable while over budget: allowed, logged,
				// never fatal.
				c.policyViolations.Add(1)
				c.logger.Warn("memory budget exceeded with no evictable textures",
					"resident_bytes", c.rc.MemoryUsage(),
					"budget_bytes", c.rc.Budget(),
					"entries", len(c.items),
				)
			}
			return
		}
		c.removeElement(back)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.recency.Remove(el)
	delete(c.items, e.frame)
	c.rc.ReleaseMemory(e.byteSize)
	c.evictions.Add(1)
	if c.destroy != nil && e.handle != nil {
		c.destroy(e.handle)
	}
	e.handle = nil
	e.raw = nil
}

// Raw returns the decoded raw bytes retained for frame. Only meaningful for
// Ready entries.
func (c *Cache) Raw(frame int) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[frame]
	if !ok || e.state != StateReady {
		return nil, false
	}
	return c.decodeRaw(e)
}

func (c *Cache) decodeRaw(e *entry) ([]byte, bool) {
	if !e.rawCompressed {
		return e.raw, true
	}
	raw, err := c.codec.Decode(e.raw)
	if err != nil {
		c.logger.Error("retained frame data unreadable", "frame", e.frame, "error", err)
		return nil, false
	}
	return raw, true
}

// Rebind re-creates the GPU texture of every Ready entry through create,
// after a context loss invalidated the old handles. Old handles are released
// best-effort. Entries whose raw data cannot be decoded or whose re-bind
// fails are dropped. Returns how many entries were rebound and how many were
// dropped.
func (c *Cache) Rebind(create func(raw []byte) (any, error)) (rebound, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.recency.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)

		raw, ok := c.decodeRaw(e)
		if ok {
			handle, err := create(raw)
			if err == nil {
				if c.destroy != nil && e.handle != nil {
					c.destroy(e.handle)
				}
				e.handle = handle
				rebound++
				el = next
				continue
			}
			c.logger.Warn("rebind failed, dropping frame", "frame", e.frame, "error", err)
		}
		c.removeElement(el)
		dropped++
		el = next
	}
	return rebound, dropped
}

// Clear destroys every resident handle and empties the cache. In-flight
// placeholders are failed with err so waiters unblock. Safe to call twice.
func (c *Cache) Clear(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for frame, e := range c.items {
		switch e.state {
		case StateReady:
			c.rc.ReleaseMemory(e.byteSize)
			if c.destroy != nil && e.handle != nil {
				c.destroy(e.handle)
			}
		case StateLoading:
			e.state = StateFailed
			e.err = err
			close(e.done)
		}
		delete(c.items, frame)
	}
	c.recency.Init()
}

// Len returns the number of entries, in-flight placeholders included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ResidentBytes returns the tracked resident byte total.
func (c *Cache) ResidentBytes() int64 {
	return c.rc.MemoryUsage()
}

// Counters returns the accumulated hit, miss, eviction, and policy-violation
// counts.
func (c *Cache) Counters() (hits, misses, evictions, policyViolations int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load(), c.policyViolations.Load()
}
