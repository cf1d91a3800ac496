package cache

import (
	"sync"

	"github.com/locshare/locshare/pkg/core"
)

// SnapshotCache keeps the most recent roster snapshot. The reconciler uses
// it to re-run filtering eagerly without waiting for the next feed push.
// Latency here matters: reads happen on the hot event loop path.
type SnapshotCache struct {
	m    sync.Mutex
	snap core.Snapshot
	set  bool
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// Set stores a copy of the snapshot so later mutation by the caller cannot
// leak into the cache.
func (c *SnapshotCache) Set(snap core.Snapshot) {
	c.m.Lock()
	defer c.m.Unlock()
	c.snap = snap.Clone()
	c.set = true
}

// Get returns a copy of the cached snapshot and whether one has been set.
func (c *SnapshotCache) Get() (core.Snapshot, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if !c.set {
		return nil, false
	}
	return c.snap.Clone(), true
}

// Reset clears the cache.
func (c *SnapshotCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.snap = nil
	c.set = false
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Dec() {
	c.mu.Lock()
	c.v--
	c.mu.Unlock()
}
