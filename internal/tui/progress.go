// Package tui draws plain-terminal progress for batch runs.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/sdgsim/internal/metrics"
	"github.com/san-kum/sdgsim/internal/sim"
)

const (
	barWidth  = 30
	clearLine = "\r\033[2K"
)

// Progress is a sim.Observer that redraws a single status line at most
// frameRate times per second. The final step is always drawn.
type Progress struct {
	w         io.Writer
	label     string
	total     int
	frameRate int
	lastFrame time.Time
	now       func() time.Time
}

func NewProgress(w io.Writer, label string, total, frameRate int) *Progress {
	if frameRate <= 0 {
		frameRate = 10
	}
	return &Progress{w: w, label: label, total: total, frameRate: frameRate, now: time.Now}
}

func (p *Progress) OnStep(s *sim.State) {
	now := p.now()
	if s.Step < p.total && now.Sub(p.lastFrame) < time.Second/time.Duration(p.frameRate) {
		return
	}
	p.lastFrame = now
	fmt.Fprint(p.w, clearLine+p.line(s))
}

// Done ends the status line.
func (p *Progress) Done() { fmt.Fprintln(p.w) }

func (p *Progress) line(s *sim.State) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s ", p.label))
	if p.total > 0 {
		filled := min(barWidth, s.Step*barWidth/p.total)
		b.WriteString("[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "] ")
		b.WriteString(fmt.Sprintf("%d/%d ", s.Step, p.total))
	} else {
		b.WriteString(fmt.Sprintf("%d ", s.Step))
	}
	b.WriteString(fmt.Sprintf("t=%.4f mass=%.6f", s.Time, s.Psi.Density().Mean()))
	if s.Density.Valid() {
		b.WriteString(fmt.Sprintf(" rho_max=%.4g", s.Density.Max()))
	}
	if s.Geometry != nil {
		b.WriteString(fmt.Sprintf(" h_norm=%.4g", metrics.HNorm(s.Geometry.Metric)))
	}
	return b.String()
}
