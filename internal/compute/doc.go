// Package compute provides the execution backends and the kernel cache
// used by the geometry pipeline.
//
// Every pipeline stage is a whole-grid bulk transform. A [Backend] splits
// the rows of a grid into bands and runs them on worker goroutines; the
// call blocks until the full grid has been processed.
//
// # Kernel Cache
//
// Stencil kernels are specialised for a static shape (grid extent and
// relaxation sweep count). A [Cache] builds each [Kernel] once per [Key]
// and hands out the same read-only instance afterwards:
//
//	cache := compute.NewCache(compute.GetBackend())
//	took, _ := cache.Warm(compute.Key{Rows: 128, Cols: 128, Iterations: 50})
//	k, _ := cache.Get(compute.Key{Rows: 128, Cols: 128, Iterations: 50})
//
// Concurrent misses for one key collapse into a single build. Changing the
// resolution or sweep count selects a different key; [Cache.Invalidate]
// and [Cache.Reset] drop built kernels explicitly.
package compute
