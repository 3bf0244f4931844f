// Package grid provides the periodic 2D grid containers shared by the
// geometry pipeline and its collaborators.
//
// The package defines the fundamental storage types:
//
//   - [Shape]: grid extent, axis 0 = rows (y), axis 1 = cols (x)
//   - [Field]: complex amplitude grid, generic over complex64/complex128
//   - [Scalar]: real grid (densities, conformal scales, metric components)
//   - [Tensor4]: per-cell 4x4 tensor stored component-major
//   - [Neighbors]: periodic wrap tables for stencil kernels
//
// All grids are row-major and topologically a torus: the first row is the
// neighbour of the last one, and likewise for columns.
//
// # Example
//
//	shape := grid.Shape{Rows: 64, Cols: 64}
//	psi := grid.NewField[complex128](shape)
//	psi.Fill(1)
//	rho := psi.Density()
//	fmt.Println(rho.Mean())
package grid
