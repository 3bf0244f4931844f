package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/sdgsim/internal/grid"
)

var shades = []rune{' ', '░', '▒', '▓', '█'}

// Bucket averages rho into a rows x cols block grid. Non-finite cells
// propagate into their block.
func Bucket(rho grid.Scalar, rows, cols int) [][]float64 {
	rows = max(1, min(rows, rho.Rows))
	cols = max(1, min(cols, rho.Cols))
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		r0, r1 := i*rho.Rows/rows, (i+1)*rho.Rows/rows
		for j := range out[i] {
			c0, c1 := j*rho.Cols/cols, (j+1)*rho.Cols/cols
			sum := 0.0
			for r := r0; r < r1; r++ {
				for c := c0; c < c1; c++ {
					sum += rho.At(r, c)
				}
			}
			out[i][j] = sum / float64((r1-r0)*(c1-c0))
		}
	}
	return out
}

// Heatmap draws rho in at most rows x cols characters, scaled between its
// own minimum and maximum. Non-finite blocks show as '!'. A theme whose
// ramp ends are not hex colours is an error.
func Heatmap(rho grid.Scalar, rows, cols int, theme Theme) (string, error) {
	if !rho.Valid() {
		return "", nil
	}
	ramp, err := theme.Ramp()
	if err != nil {
		return "", fmt.Errorf("viz: theme %s: %w", theme.Name, err)
	}
	blocks := Bucket(rho, rows, cols)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range blocks {
		for _, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	span := hi - lo
	if span <= 0 || math.IsInf(span, 0) {
		span = 1
	}

	bad := lipgloss.NewStyle().Foreground(theme.Error).Bold(true)
	var b strings.Builder
	for _, row := range blocks {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				b.WriteString(bad.Render("!"))
				continue
			}
			t := (v - lo) / span
			idx := int(t * float64(len(shades)-1))
			idx = max(0, min(idx, len(shades)-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(ramp.At(t)))
			b.WriteString(style.Render(string(shades[idx])))
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
