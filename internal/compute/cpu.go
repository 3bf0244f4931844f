package compute

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minRowsPerWorker keeps small grids on the calling goroutine.
const minRowsPerWorker = 16

type CPUBackend struct {
	workers int
}

func NewCPUBackend() *CPUBackend {
	return NewCPUBackendN(runtime.NumCPU())
}

// NewSerialBackend runs every band on the calling goroutine.
func NewSerialBackend() *CPUBackend {
	return &CPUBackend{workers: 1}
}

func (c *CPUBackend) Name() string {
	if c.workers == 1 {
		return "cpu (serial)"
	}
	return "cpu"
}

func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Workers() int    { return c.workers }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) Rows(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}

	workers := c.workers
	if n/minRowsPerWorker < workers {
		workers = n / minRowsPerWorker
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}
