// Package viz renders a running simulation in the terminal.
//
// [Model] is a Bubble Tea program that advances a [sim.Simulator] on every
// tick and draws:
//
//   - a shaded heatmap of |psi|^2 ([Heatmap])
//   - the density along the centre row on a Braille [Canvas]
//   - time, mass, h_norm and the range of the conformal scale
//   - the mass history via asciigraph
//
// [NewPicker] wraps it with a preset menu.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reset to the initial field
//	T     - Cycle color themes
//	Q     - Quit
package viz
