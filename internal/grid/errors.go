package grid

import (
	"errors"
	"fmt"
)

// Domain errors for grid operations.
var (
	// ErrShapeMismatch indicates two grids that must agree in extent do not.
	ErrShapeMismatch = errors.New("grid: shape mismatch")

	// ErrEmptyGrid indicates a grid with zero rows or columns.
	ErrEmptyGrid = errors.New("grid: empty grid")

	// ErrNonFinite indicates a grid holding NaN or Inf values.
	ErrNonFinite = errors.New("grid: non-finite values")
)

// ShapeError wraps ErrShapeMismatch with the offending extents.
type ShapeError struct {
	Op      string
	Want    Shape
	Got     Shape
	Wrapped error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: want %dx%d, got %dx%d: %v", e.Op, e.Want.Rows, e.Want.Cols, e.Got.Rows, e.Got.Cols, e.Wrapped)
}

func (e *ShapeError) Unwrap() error {
	return e.Wrapped
}

// CheckShape returns a *ShapeError when got differs from want.
func CheckShape(op string, want, got Shape) error {
	if want != got {
		return &ShapeError{Op: op, Want: want, Got: got, Wrapped: ErrShapeMismatch}
	}
	if !want.Valid() {
		return fmt.Errorf("%s: %w", op, ErrEmptyGrid)
	}
	return nil
}
