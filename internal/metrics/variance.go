package metrics

import (
	"github.com/san-kum/sdgsim/internal/grid"
	"github.com/san-kum/sdgsim/internal/sim"
	"gonum.org/v1/gonum/stat"
)

// HNorm is the population variance over every component of every cell of
// g, a cheap proxy for how far the metric strays from uniform.
func HNorm(g *grid.Tensor4[float64]) float64 {
	if g == nil || g.Len() == 0 {
		return 0
	}
	return stat.PopVariance(g.Flatten(), nil)
}

// MetricVariance reports HNorm of the last observed metric.
type MetricVariance struct {
	name    string
	current float64
}

func NewMetricVariance() *MetricVariance {
	return &MetricVariance{name: "h_norm"}
}

func (m *MetricVariance) Name() string { return m.name }

func (m *MetricVariance) Observe(s *sim.State) {
	if s.Geometry == nil {
		return
	}
	m.current = HNorm(s.Geometry.Metric)
}

func (m *MetricVariance) Value() float64 { return m.current }

func (m *MetricVariance) Reset() { m.current = 0 }
