package viz

import (
	"math"
	"strings"
)

const brailleBlank rune = 0x2800

// brailleDots[y][x] is the bit of dot (x, y) inside one braille cell,
// which is two dots wide and four tall.
var brailleDots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille raster used for the density profile panel. Its
// resolution is 2*Width by 4*Height dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for _, row := range c.Grid {
		for j := range row {
			row[j] = brailleBlank
		}
	}
}

// dot raises the dot at (x, y); out-of-range dots are dropped.
func (c *Canvas) dot(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return
	}
	c.Grid[y/4][x/2] |= brailleDots[y%4][x%2]
}

// segment joins two dots with a Bresenham line.
func (c *Canvas) segment(x0, y0, x1, y1 int) {
	dx, dy := x1-x0, y1-y0
	sx, sy := 1, 1
	if dx < 0 {
		dx, sx = -dx, -1
	}
	if dy < 0 {
		dy, sy = -dy, -1
	}
	e := dx - dy
	for {
		c.dot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x0 += sx
		}
		if e2 < dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Plot draws values as a polyline across the full canvas, scaled between
// their finite minimum and maximum. Non-finite samples break the line.
func (c *Canvas) Plot(values []float64) {
	if len(values) == 0 {
		return
	}
	w, h := c.Width*2, c.Height*4
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	span := hi - lo
	if span <= 0 || math.IsInf(span, 0) {
		span = 1
	}

	px, py, joined := 0, 0, false
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			joined = false
			continue
		}
		x := 0
		if len(values) > 1 {
			x = i * (w - 1) / (len(values) - 1)
		}
		y := (h - 1) - int((v-lo)/span*float64(h-1))
		if joined {
			c.segment(px, py, x, y)
		} else {
			c.dot(x, y)
		}
		px, py, joined = x, y, true
	}
}
