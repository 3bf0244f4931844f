package compute

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/sdgsim/internal/grid"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidKey = errors.New("compute: kernel key must have positive extents and sweep count")

// Key identifies a kernel by its static shape parameters.
type Key struct {
	Rows       int
	Cols       int
	Iterations int
}

func (k Key) String() string {
	return fmt.Sprintf("%dx%d/%d", k.Rows, k.Cols, k.Iterations)
}

func (k Key) Shape() grid.Shape { return grid.Shape{Rows: k.Rows, Cols: k.Cols} }

// Kernel is a shape-specialised execution plan. It is immutable once built
// and safe to share between goroutines.
type Kernel struct {
	Key       Key
	Neighbors *grid.Neighbors
	Backend   Backend
	BuildTime time.Duration
}

// NewKernel builds an uncached kernel. Callers running many steps on one
// shape should go through a Cache instead.
func NewKernel(key Key, b Backend) *Kernel {
	if b == nil {
		b = GetBackend()
	}
	start := time.Now()
	k := &Kernel{
		Key:       key,
		Neighbors: grid.NewNeighbors(key.Shape()),
		Backend:   b,
	}
	k.BuildTime = time.Since(start)
	return k
}

func (k *Kernel) Shape() grid.Shape { return k.Key.Shape() }

// Each runs fn over flat cell ranges [lo, hi) covering the whole grid,
// split on row boundaries.
func (k *Kernel) Each(fn func(lo, hi int)) {
	cols := k.Key.Cols
	k.Backend.Rows(k.Key.Rows, func(start, end int) {
		fn(start*cols, end*cols)
	})
}

type Stats struct {
	Hits   int64
	Misses int64
	Builds int64
}

type Cache struct {
	backend Backend

	mu      sync.RWMutex
	kernels map[Key]*Kernel
	group   singleflight.Group

	hits, misses, builds atomic.Int64
}

// NewCache returns an empty cache whose kernels run on b. A nil backend
// selects the active package backend.
func NewCache(b Backend) *Cache {
	if b == nil {
		b = GetBackend()
	}
	return &Cache{
		backend: b,
		kernels: make(map[Key]*Kernel),
	}
}

func (c *Cache) Backend() Backend { return c.backend }

func (c *Cache) lookup(key Key) (*Kernel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.kernels[key]
	return k, ok
}

// Get returns the kernel for key, building it on first use.
func (c *Cache) Get(key Key) (*Kernel, error) {
	if key.Rows <= 0 || key.Cols <= 0 || key.Iterations <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	if k, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return k, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		if k, ok := c.lookup(key); ok {
			return k, nil
		}
		k := c.build(key)
		c.mu.Lock()
		c.kernels[key] = k
		c.mu.Unlock()
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Kernel), nil
}

func (c *Cache) build(key Key) *Kernel {
	k := NewKernel(key, c.backend)
	c.builds.Add(1)
	return k
}

// Warm builds the kernel for key ahead of the first pipeline call and
// reports how long the build took. A key that is already cached costs
// nothing and reports zero.
func (c *Cache) Warm(key Key) (time.Duration, error) {
	if _, ok := c.lookup(key); ok {
		return 0, nil
	}
	k, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	return k.BuildTime, nil
}

func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.kernels, key)
	c.mu.Unlock()
	c.group.Forget(key.String())
}

func (c *Cache) Reset() {
	c.mu.Lock()
	c.kernels = make(map[Key]*Kernel)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kernels)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Builds: c.builds.Load(),
	}
}
