package grid

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Shape is the extent of a periodic grid.
type Shape struct {
	Rows int
	Cols int
}

// Len returns the number of cells.
func (s Shape) Len() int { return s.Rows * s.Cols }

// Valid reports whether both extents are positive.
func (s Shape) Valid() bool { return s.Rows > 0 && s.Cols > 0 }

// Index returns the flat row-major index of (r, c), wrapping both axes.
func (s Shape) Index(r, c int) int {
	r %= s.Rows
	if r < 0 {
		r += s.Rows
	}
	c %= s.Cols
	if c < 0 {
		c += s.Cols
	}
	return r*s.Cols + c
}

// Complex is the set of storage precisions a field may use.
type Complex interface {
	~complex64 | ~complex128
}

// Number is the set of element types a Tensor4 may hold.
type Number interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// Field is a complex amplitude on a periodic grid.
type Field[C Complex] struct {
	Shape
	Data []C
}

func NewField[C Complex](s Shape) Field[C] {
	return Field[C]{Shape: s, Data: make([]C, s.Len())}
}

func (f Field[C]) Clone() Field[C] {
	c := Field[C]{Shape: f.Shape, Data: make([]C, len(f.Data))}
	copy(c.Data, f.Data)
	return c
}

func (f Field[C]) At(r, c int) C     { return f.Data[f.Index(r, c)] }
func (f Field[C]) Set(r, c int, v C) { f.Data[f.Index(r, c)] = v }

func (f Field[C]) Fill(v C) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// IsFinite reports whether every element has finite real and imaginary parts.
func (f Field[C]) IsFinite() bool {
	for _, v := range f.Data {
		z := complex128(v)
		if !finite(real(z)) || !finite(imag(z)) {
			return false
		}
	}
	return true
}

// Density returns |psi|^2 per cell.
func (f Field[C]) Density() Scalar {
	rho := NewScalar(f.Shape)
	for i, v := range f.Data {
		z := complex128(v)
		rho.Data[i] = real(z)*real(z) + imag(z)*imag(z)
	}
	return rho
}

// Add returns f + scale*other. Shapes must agree.
func (f Field[C]) Add(other Field[C], scale float64) Field[C] {
	out := NewField[C](f.Shape)
	k := C(complex(scale, 0))
	for i := range f.Data {
		out.Data[i] = f.Data[i] + k*other.Data[i]
	}
	return out
}

// Scalar is a real-valued periodic grid.
type Scalar struct {
	Shape
	Data []float64
}

func NewScalar(s Shape) Scalar {
	return Scalar{Shape: s, Data: make([]float64, s.Len())}
}

// ConstScalar returns a grid filled with v.
func ConstScalar(s Shape, v float64) Scalar {
	out := NewScalar(s)
	out.Fill(v)
	return out
}

func (g Scalar) Clone() Scalar {
	c := Scalar{Shape: g.Shape, Data: make([]float64, len(g.Data))}
	copy(c.Data, g.Data)
	return c
}

func (g Scalar) At(r, c int) float64     { return g.Data[g.Index(r, c)] }
func (g Scalar) Set(r, c int, v float64) { g.Data[g.Index(r, c)] = v }

func (g Scalar) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

func (g Scalar) IsFinite() bool {
	for _, v := range g.Data {
		if !finite(v) {
			return false
		}
	}
	return true
}

func (g Scalar) Mean() float64 {
	if len(g.Data) == 0 {
		return 0
	}
	return floats.Sum(g.Data) / float64(len(g.Data))
}

func (g Scalar) Max() float64 {
	if len(g.Data) == 0 {
		return math.NaN()
	}
	return floats.Max(g.Data)
}

func (g Scalar) Min() float64 {
	if len(g.Data) == 0 {
		return math.NaN()
	}
	return floats.Min(g.Data)
}

// Clip returns a copy with every value raised to at least floor.
// NaN values are left as they are.
func (g Scalar) Clip(floor float64) Scalar {
	out := g.Clone()
	for i, v := range out.Data {
		if v < floor {
			out.Data[i] = floor
		}
	}
	return out
}

// Tensor4 is a 4x4 tensor per cell, stored component-major so that
// C[a][b] is itself a row-major grid.
type Tensor4[T Number] struct {
	Shape
	C [4][4][]T
}

func NewTensor4[T Number](s Shape) *Tensor4[T] {
	t := &Tensor4[T]{Shape: s}
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			t.C[a][b] = make([]T, s.Len())
		}
	}
	return t
}

// Cell gathers the 4x4 tensor at flat index i.
func (t *Tensor4[T]) Cell(i int) [4][4]T {
	var m [4][4]T
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			m[a][b] = t.C[a][b][i]
		}
	}
	return m
}

// Component returns C[a][b] as a Scalar sharing storage. Only valid for
// real tensors.
func Component(t *Tensor4[float64], a, b int) Scalar {
	return Scalar{Shape: t.Shape, Data: t.C[a][b]}
}

// Flatten returns all components in (a, b, row, col) order.
func (t *Tensor4[T]) Flatten() []T {
	n := t.Len()
	out := make([]T, 0, 16*n)
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			out = append(out, t.C[a][b]...)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
