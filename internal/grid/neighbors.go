package grid

// Neighbors holds the flat indices of the four periodic neighbours of
// every cell. Up/Down step along rows (axis 0), Left/Right along cols.
type Neighbors struct {
	Shape
	Up, Down, Left, Right []int
}

func NewNeighbors(s Shape) *Neighbors {
	n := &Neighbors{
		Shape: s,
		Up:    make([]int, s.Len()),
		Down:  make([]int, s.Len()),
		Left:  make([]int, s.Len()),
		Right: make([]int, s.Len()),
	}
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			i := r*s.Cols + c
			n.Up[i] = s.Index(r-1, c)
			n.Down[i] = s.Index(r+1, c)
			n.Left[i] = s.Index(r, c-1)
			n.Right[i] = s.Index(r, c+1)
		}
	}
	return n
}

// Along returns the (previous, next) tables for the given axis.
func (n *Neighbors) Along(axis int) (prev, next []int) {
	if axis == 0 {
		return n.Up, n.Down
	}
	return n.Left, n.Right
}
