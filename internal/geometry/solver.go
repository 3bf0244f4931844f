package geometry

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/grid"
)

var (
	ErrResolution = errors.New("geometry: spatial resolution must be positive")
	ErrIterations = errors.New("geometry: relaxation iteration count must be positive")
)

// Geometry is the outcome of one stress-energy / relaxation / metric pass.
type Geometry struct {
	// Source is T00 as fed to the relaxation.
	Source grid.Scalar
	// Density is the clipped relaxed density; pass it back as the next
	// step's warm start.
	Density    grid.Scalar
	Metric     *grid.Tensor4[float64]
	Connection *Connection

	// Det and Volume are only populated when Policy.Diagnostics is set.
	Det    grid.Scalar
	Volume grid.Scalar
}

// Solver runs the pipeline for one static spatial resolution. dx is fixed
// at 1/resolution for the solver's lifetime. A Solver holds no per-step
// state and may be shared by goroutines working on different fields.
type Solver[C grid.Complex] struct {
	resolution int
	dx         float64
	policy     Policy
	cache      *compute.Cache
}

// NewSolver returns a solver using cache for its kernels. A nil cache gets
// a private one on the active backend.
func NewSolver[C grid.Complex](resolution int, p Policy, cache *compute.Cache) (*Solver[C], error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrResolution, resolution)
	}
	if p.RelaxIterations <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrIterations, p.RelaxIterations)
	}
	if cache == nil {
		cache = compute.NewCache(nil)
	}
	return &Solver[C]{
		resolution: resolution,
		dx:         1.0 / float64(resolution),
		policy:     p,
		cache:      cache,
	}, nil
}

func (s *Solver[C]) Resolution() int       { return s.resolution }
func (s *Solver[C]) DX() float64           { return s.dx }
func (s *Solver[C]) Policy() Policy        { return s.policy }
func (s *Solver[C]) Cache() *compute.Cache { return s.cache }

func (s *Solver[C]) key(shape grid.Shape) compute.Key {
	return compute.Key{Rows: shape.Rows, Cols: shape.Cols, Iterations: s.policy.RelaxIterations}
}

// Kernel returns the cached kernel for shape.
func (s *Solver[C]) Kernel(shape grid.Shape) (*compute.Kernel, error) {
	return s.cache.Get(s.key(shape))
}

// Warmup builds the kernel for shape up front and reports the one-time
// cost, so the first Step does not absorb it.
func (s *Solver[C]) Warmup(shape grid.Shape) (time.Duration, error) {
	return s.cache.Warm(s.key(shape))
}

// Geometry computes stress-energy, relaxes the density starting from rho,
// clips it and assembles the metric and its connection. rho is not
// modified.
func (s *Solver[C]) Geometry(psi grid.Field[C], rho grid.Scalar, prm Params) (*Geometry, error) {
	if err := grid.CheckShape("geometry: density", psi.Shape, rho.Shape); err != nil {
		return nil, err
	}
	k, err := s.Kernel(psi.Shape)
	if err != nil {
		return nil, err
	}

	t := StressEnergy(psi, prm.Kappa, prm.Eta, s.policy, k)
	src := EnergyDensity(t)
	relaxed := Relax(src, rho, s.dx, s.policy.RelaxIterations, s.policy.RelaxOmega, k)
	density, metric := Assemble(relaxed, prm.Alpha, prm.RhoVac, s.policy)

	g := &Geometry{
		Source:     src,
		Density:    density,
		Metric:     metric,
		Connection: Christoffel(metric, k),
	}
	if s.policy.Diagnostics {
		g.Det, g.Volume = VolumeElement(metric)
	}
	return g, nil
}

// Increment returns d(psi)/dt under the geometry g.
func (s *Solver[C]) Increment(psi grid.Field[C], g *Geometry, epsilon float64) (grid.Field[C], error) {
	if err := grid.CheckShape("geometry: metric", psi.Shape, g.Metric.Shape); err != nil {
		return grid.Field[C]{}, err
	}
	k, err := s.Kernel(psi.Shape)
	if err != nil {
		return grid.Field[C]{}, err
	}
	return Diffuse(psi, epsilon, s.dx, g.Connection, s.policy, k), nil
}

// Step runs the full pipeline once.
func (s *Solver[C]) Step(psi grid.Field[C], rho grid.Scalar, prm Params) (*Geometry, grid.Field[C], error) {
	g, err := s.Geometry(psi, rho, prm)
	if err != nil {
		return nil, grid.Field[C]{}, err
	}
	dpsi, err := s.Increment(psi, g, prm.Epsilon)
	if err != nil {
		return nil, grid.Field[C]{}, err
	}
	return g, dpsi, nil
}
