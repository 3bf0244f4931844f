package export

import (
	"math"
	"strings"
	"testing"
)

func TestRamp(t *testing.T) {
	r, err := NewRamp("#000000", "#ffffff")
	if err != nil {
		t.Fatal(err)
	}
	if got := r.At(0); got != "#000000" {
		t.Errorf("At(0) = %s", got)
	}
	if got := r.At(2); got != "#ffffff" {
		t.Errorf("At(2) should clamp, got %s", got)
	}
	if _, err := NewRamp("black", "#ffffff"); err == nil {
		t.Error("expected an error for a non-hex colour")
	}
}

func TestDensitySVG(t *testing.T) {
	r, _ := NewRamp("#000000", "#ffffff")
	data := []float64{0, 1, 2, math.NaN(), 4, 5}

	svg := DensitySVG(data, 2, 3, 10, r)
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("not a complete svg document")
	}
	if n := strings.Count(svg, "<rect "); n != 7 {
		t.Errorf("got %d rects, want background + 6 cells", n)
	}
	if !strings.Contains(svg, `width="30" height="20"`) {
		t.Error("document size should be cols x rows cells")
	}
	if !strings.Contains(svg, `fill="#ff0000"`) {
		t.Error("non-finite cell not marked")
	}
	if !strings.Contains(svg, `fill="#000000"`) || !strings.Contains(svg, `fill="#ffffff"`) {
		t.Error("extremes should map to the ends of the ramp")
	}

	if DensitySVG(data, 3, 3, 10, r) != "" {
		t.Error("short data should render nothing")
	}
}

func TestSeriesSVG(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{1, math.Inf(1), 0.5, 0.25}

	svg := SeriesSVG(xs, ys, 200, 100, "#00ff88")
	if strings.Count(svg, " L") != 2 {
		t.Errorf("expected 3 points with the non-finite one skipped:\n%s", svg)
	}
	if !strings.Contains(svg, `stroke="#00ff88"`) {
		t.Error("stroke colour missing")
	}
	if SeriesSVG([]float64{0}, []float64{1}, 10, 10, "#fff") != "" {
		t.Error("a single point should render nothing")
	}
}
