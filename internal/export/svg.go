// Package export renders archived runs as standalone SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const background = "#0a0a0a"

// Ramp maps [0, 1] onto a blend between two hex colours in Lab space.
type Ramp struct {
	low, high colorful.Color
}

func NewRamp(low, high string) (Ramp, error) {
	lo, err := colorful.Hex(low)
	if err != nil {
		return Ramp{}, fmt.Errorf("export: low colour: %w", err)
	}
	hi, err := colorful.Hex(high)
	if err != nil {
		return Ramp{}, fmt.Errorf("export: high colour: %w", err)
	}
	return Ramp{low: lo, high: hi}, nil
}

func (r Ramp) At(t float64) string {
	t = math.Max(0, math.Min(1, t))
	return r.low.BlendLab(r.high, t).Clamped().Hex()
}

// DensitySVG draws a rows x cols grid given row-major, one cell-sized
// square per value, scaled between its finite extremes. Non-finite cells
// are drawn in red.
func DensitySVG(data []float64, rows, cols int, cell float64, ramp Ramp) string {
	if rows <= 0 || cols <= 0 || len(data) < rows*cols {
		return ""
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data[:rows*cols] {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	span := hi - lo
	if span <= 0 || math.IsInf(span, 0) {
		span = 1
	}

	width := float64(cols) * cell
	height := float64(rows) * cell

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" shape-rendering="crispEdges">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := data[r*cols+c]
			fill := "#ff0000"
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				fill = ramp.At((v - lo) / span)
			}
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, float64(c)*cell, float64(r)*cell, cell, cell, fill))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SeriesSVG draws y against x as a single path. Non-finite points are
// skipped.
func SeriesSVG(xs, ys []float64, width, height int, strokeColor string) string {
	type point struct{ X, Y float64 }
	points := make([]point, 0, len(xs))
	for i := 0; i < len(xs) && i < len(ys); i++ {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		points = append(points, point{x, y})
	}
	if len(points) < 2 {
		return ""
	}

	// Find bounds
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, strokeColor))

	for i, p := range points {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
