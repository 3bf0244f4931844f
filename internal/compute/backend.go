package compute

import (
	"errors"
	"fmt"
	"runtime"
)

var ErrUnknownBackend = errors.New("compute: unknown backend")

// Backend executes row-banded work over a grid.
type Backend interface {
	Name() string
	Available() bool
	Workers() int
	// Rows calls fn over disjoint [start, end) bands covering [0, n) and
	// returns once every band is done.
	Rows(n int, fn func(start, end int))
	Cleanup()
}

var activeBackend Backend

func init() {
	activeBackend = AutoSelectBackend()
}

// SetBackend swaps the backend used by caches created afterwards.
// Existing caches keep the backend they were built with.
func SetBackend(b Backend) {
	if activeBackend != nil && activeBackend != b {
		activeBackend.Cleanup()
	}
	activeBackend = b
}

func GetBackend() Backend {
	return activeBackend
}

func AutoSelectBackend() Backend {
	return NewCPUBackend()
}

// BackendNames lists the names ParseBackend accepts.
func BackendNames() []string { return []string{"auto", "cpu", "serial"} }

// ParseBackend builds a backend by name. workers caps the cpu backend's
// goroutines; zero or less means one per CPU.
func ParseBackend(name string, workers int) (Backend, error) {
	switch name {
	case "", "auto":
		if workers > 0 {
			return NewCPUBackendN(workers), nil
		}
		return AutoSelectBackend(), nil
	case "cpu":
		return NewCPUBackendN(workers), nil
	case "serial":
		return NewSerialBackend(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
}

// NewCPUBackendN returns a cpu backend with at most workers goroutines.
func NewCPUBackendN(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{workers: workers}
}
