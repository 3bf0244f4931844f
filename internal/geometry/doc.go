// Package geometry implements the per-step emergent-geometry pipeline that
// couples a complex field to a conformally flat metric.
//
// One step runs five whole-grid transforms in a fixed order:
//
//   - [StressEnergy]: field amplitude and phase -> T00
//   - [Relax]: weighted Jacobi relaxation of the scalar density
//   - [Assemble]: density -> conformal 4x4 metric
//   - [Christoffel]: spatial metric block -> inverse metric and connection
//   - [Diffuse]: covariant Laplace-Beltrami increment for the field
//
// [Solver] composes them for a fixed spatial resolution and warm-starts the
// relaxation from the previous step's density.
//
// # Failure Model
//
// None of the kernels raise on ill-conditioned input. A bad source, guess
// or (alpha, rho_vac) pair propagates NaN or Inf into the outputs and the
// caller is expected to check the results (see sim.Simulator).
//
// # Example
//
//	solver, _ := geometry.NewSolver[complex128](64, geometry.DefaultPolicy(), nil)
//	geom, dpsi, _ := solver.Step(psi, rho, params)
//	rho = geom.Density
package geometry
