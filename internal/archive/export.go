package archive

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
)

// number encodes NaN and Inf as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func numbers(xs []float64) []number {
	out := make([]number, len(xs))
	for i, x := range xs {
		out[i] = number(x)
	}
	return out
}

type ExportData struct {
	Meta      *RunMetadata `json:"metadata"`
	Dims      []int        `json:"dims"`
	Times     []number     `json:"times"`
	Mass      []number     `json:"mass"`
	Density   []number     `json:"final_density"`
	HasMetric bool         `json:"has_metric"`
}

// ExportJSON writes snap's metadata, mass history and final density.
// Non-finite values are written as null.
func ExportJSON(w io.Writer, snap *Snapshot) error {
	rho := snap.Psi.Density()
	data := ExportData{
		Meta:      snap.Meta,
		Dims:      rho.Dims,
		Times:     numbers(snap.Times),
		Mass:      numbers(snap.Mass),
		Density:   numbers(rho.Data),
		HasMetric: snap.Metric != nil,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
