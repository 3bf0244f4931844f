package archive

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/sdgsim/internal/grid"
)

var ErrMalformed = errors.New("archive: malformed array")

// ComplexArray is a dense row-major complex array of any rank.
type ComplexArray struct {
	Dims []int
	Data []complex128
}

// RealArray is a dense row-major real array of any rank.
type RealArray struct {
	Dims []int
	Data []float64
}

func (a RealArray) Rank() int    { return len(a.Dims) }
func (a ComplexArray) Rank() int { return len(a.Dims) }

// Density returns |z|^2 element-wise with the same dims.
func (a ComplexArray) Density() RealArray {
	out := RealArray{Dims: append([]int(nil), a.Dims...), Data: make([]float64, len(a.Data))}
	for i, z := range a.Data {
		out.Data[i] = real(z)*real(z) + imag(z)*imag(z)
	}
	return out
}

func FieldArray(f grid.Field[complex128]) ComplexArray {
	return ComplexArray{Dims: []int{f.Rows, f.Cols}, Data: f.Clone().Data}
}

// Field converts a rank-2 array back to a grid field.
func (a ComplexArray) Field() (grid.Field[complex128], error) {
	if len(a.Dims) != 2 {
		return grid.Field[complex128]{}, fmt.Errorf("%w: rank %d is not a 2-D field", ErrMalformed, len(a.Dims))
	}
	f := grid.NewField[complex128](grid.Shape{Rows: a.Dims[0], Cols: a.Dims[1]})
	copy(f.Data, a.Data)
	return f, nil
}

// TensorArray lays a metric out as (4, 4, rows, cols).
func TensorArray(t *grid.Tensor4[float64]) RealArray {
	return RealArray{Dims: []int{4, 4, t.Rows, t.Cols}, Data: t.Flatten()}
}

func volume(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeDims(w *csv.Writer, dims []int) error {
	header := []string{"dims"}
	for _, d := range dims {
		header = append(header, strconv.Itoa(d))
	}
	return w.Write(header)
}

func readDims(r *csv.Reader) ([]int, error) {
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(record) < 2 || record[0] != "dims" {
		return nil, fmt.Errorf("%w: missing dims header", ErrMalformed)
	}
	dims := make([]int, 0, len(record)-1)
	for _, s := range record[1:] {
		d, err := strconv.Atoi(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: bad extent %q", ErrMalformed, s)
		}
		dims = append(dims, d)
	}
	return dims, nil
}

func WriteComplex(out io.Writer, a ComplexArray) error {
	w := csv.NewWriter(out)
	if err := writeDims(w, a.Dims); err != nil {
		return err
	}
	for _, z := range a.Data {
		if err := w.Write([]string{formatFloat(real(z)), formatFloat(imag(z))}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ReadComplex(in io.Reader) (ComplexArray, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	dims, err := readDims(r)
	if err != nil {
		return ComplexArray{}, err
	}
	n := volume(dims)
	a := ComplexArray{Dims: dims, Data: make([]complex128, 0, n)}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ComplexArray{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(record) != 2 {
			return ComplexArray{}, fmt.Errorf("%w: want re,im got %d fields", ErrMalformed, len(record))
		}
		re, err1 := strconv.ParseFloat(record[0], 64)
		im, err2 := strconv.ParseFloat(record[1], 64)
		if err := errors.Join(err1, err2); err != nil {
			return ComplexArray{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		a.Data = append(a.Data, complex(re, im))
	}
	if len(a.Data) != n {
		return ComplexArray{}, fmt.Errorf("%w: %d values for dims %v", ErrMalformed, len(a.Data), dims)
	}
	return a, nil
}

func WriteReal(out io.Writer, a RealArray) error {
	w := csv.NewWriter(out)
	if err := writeDims(w, a.Dims); err != nil {
		return err
	}
	for _, v := range a.Data {
		if err := w.Write([]string{formatFloat(v)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ReadReal(in io.Reader) (RealArray, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	dims, err := readDims(r)
	if err != nil {
		return RealArray{}, err
	}
	n := volume(dims)
	a := RealArray{Dims: dims, Data: make([]float64, 0, n)}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return RealArray{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(record) != 1 {
			return RealArray{}, fmt.Errorf("%w: want one value got %d fields", ErrMalformed, len(record))
		}
		v, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return RealArray{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		a.Data = append(a.Data, v)
	}
	if len(a.Data) != n {
		return RealArray{}, fmt.Errorf("%w: %d values for dims %v", ErrMalformed, len(a.Data), dims)
	}
	return a, nil
}
