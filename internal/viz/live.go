package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/grid"
	"github.com/san-kum/sdgsim/internal/metrics"
	"github.com/san-kum/sdgsim/internal/sim"
)

const (
	mapRows         = 24
	mapCols         = 48
	profileWidth    = 40
	profileHeight   = 6
	historyCapacity = 600
)

type TickMsg time.Time

// Model steps a simulator on every tick and renders the field.
type Model struct {
	sim       *sim.Simulator
	initial   sim.State
	state     sim.State
	dt        float64
	maxSteps  int
	title     string
	theme     Theme
	running   bool
	err       error
	canvas    *Canvas
	mass      []float64
	hNorm     []float64
	threshold float64
}

// NewModel starts from initial. maxSteps of zero runs until quit.
func NewModel(s *sim.Simulator, initial sim.State, dt float64, maxSteps int, title string) Model {
	return Model{
		sim:       s,
		initial:   initial.Clone(),
		state:     initial.Clone(),
		dt:        dt,
		maxSteps:  maxSteps,
		title:     title,
		theme:     CurrentTheme,
		running:   true,
		canvas:    NewCanvas(profileWidth, profileHeight),
		mass:      make([]float64, 0, historyCapacity),
		hNorm:     make([]float64, 0, historyCapacity),
		threshold: s.Solver().Policy().DivergenceThreshold,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) State() sim.State { return m.state }
func (m Model) Err() error       { return m.err }
func (m Model) Running() bool    { return m.running }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil {
				m.running = !m.running
			}
		case "r":
			m.reset()
		case "t":
			m.theme = nextTheme(m.theme.Name)
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) step() {
	if m.maxSteps > 0 && m.state.Step >= m.maxSteps {
		m.running = false
		return
	}
	next, err := m.sim.Advance(m.state, m.dt)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.state = next

	m.mass = appendCapped(m.mass, next.Psi.Density().Mean())
	if next.Geometry != nil {
		m.hNorm = appendCapped(m.hNorm, metrics.HNorm(next.Geometry.Metric))
	}

	if !next.IsValid(m.threshold) {
		m.err = &sim.StepError{Step: next.Step, Time: next.Time, Err: sim.ErrDiverged}
		m.running = false
	}
}

func appendCapped(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

func (m *Model) reset() {
	m.state = m.initial.Clone()
	m.mass = m.mass[:0]
	m.hNorm = m.hNorm[:0]
	m.err = nil
	m.running = true
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return lipgloss.NewStyle().Foreground(m.theme.Error).Bold(true).Render("DIVERGED")
	case m.maxSteps > 0 && m.state.Step >= m.maxSteps:
		return "DONE"
	case !m.running:
		return lipgloss.NewStyle().Foreground(m.theme.Warning).Render("PAUSED")
	}
	return lipgloss.NewStyle().Foreground(m.theme.Primary).Render("RUNNING")
}

// View renders the TUI interface.
func (m Model) View() string {
	rho := m.state.Psi.Density()
	heatmap, err := Heatmap(rho, mapRows, mapCols, m.theme)
	if err != nil {
		heatmap = lipgloss.NewStyle().Foreground(m.theme.Error).Render(err.Error())
	}
	heat := panelStyle.Render(heatmap)

	var s strings.Builder
	title := lipgloss.NewStyle().Foreground(m.theme.Accent).Inherit(headerStyle)
	s.WriteString(title.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.4f", m.state.Time))
	row("Step", fmt.Sprintf("%d", m.state.Step))
	if n := len(m.mass); n > 0 {
		row("Mass", fmt.Sprintf("%.6f", m.mass[n-1]))
	}
	if n := len(m.hNorm); n > 0 {
		row("h_norm", fmt.Sprintf("%.4g", m.hNorm[n-1]))
		s.WriteString(labelStyle.Render("") + SparklineChart(m.hNorm, 24) + "\n")
	}
	if g := m.state.Geometry; g != nil {
		scale := geometry.ConformalScale(g.Metric, m.sim.Solver().Policy())
		row("Scale", fmt.Sprintf("%.4g .. %.4g", scale.Min(), scale.Max()))
	}
	if m.maxSteps > 0 {
		s.WriteString(labelStyle.Render("Progress") + ProgressBar(float64(m.state.Step)/float64(m.maxSteps), 20) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(m.theme.Error).Render(m.err.Error()) + "\n")
	}

	if len(m.mass) > 1 {
		chart := asciigraph.Plot(m.mass, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Mass"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	m.canvas.Clear()
	m.canvas.Plot(centreRow(rho))
	s.WriteString(labelStyle.Render("Centre row") + "\n" + m.canvas.String())

	s.WriteString(helpStyle.Render("SP:Pause R:Reset T:Theme Q:Quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, heat, statsStyle.Render(s.String()))
}

func centreRow(rho grid.Scalar) []float64 {
	if !rho.Valid() {
		return nil
	}
	r := rho.Rows / 2
	return rho.Data[r*rho.Cols : (r+1)*rho.Cols]
}
