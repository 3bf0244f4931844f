package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// Builder turns a preset name into a ready live model.
type Builder func(preset string) (Model, error)

const (
	stateMenu = iota
	stateSim
)

// Picker lists presets and hands the chosen one to a live Model.
type Picker struct {
	state    int
	cursor   int
	presets  []string
	describe map[string]string
	build    Builder
	live     Model
	err      error
}

func NewPicker(presets []string, describe map[string]string, build Builder) Picker {
	return Picker{presets: presets, describe: describe, build: build}
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if p.state == stateSim {
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
			p.state = stateMenu
			return p, nil
		}
		live, cmd := p.live.Update(msg)
		p.live = live.(Model)
		return p, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.presets)-1 {
			p.cursor++
		}
	case "enter":
		if len(p.presets) == 0 {
			return p, nil
		}
		live, err := p.build(p.presets[p.cursor])
		if err != nil {
			p.err = err
			return p, nil
		}
		p.err = nil
		p.live = live
		p.state = stateSim
		return p, p.live.Init()
	}
	return p, nil
}

func (p Picker) View() string {
	if p.state == stateSim {
		return p.live.View()
	}

	var b strings.Builder
	b.WriteString("\n\n    " + cyan.Bold(true).Render("SDGSIM") + "\n    " + dim.Render("emergent geometry on a periodic grid") + "\n    " + dim.Render("────────────────────────────────────") + "\n\n")
	for i, name := range p.presets {
		desc := p.describe[name]
		if i == p.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cyan.Bold(true).Render("▸"), white.Render(fmt.Sprintf("%-12s", name)), dim.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", dim.Render(fmt.Sprintf("%-12s", name)), dimmer.Render(desc)))
		}
	}
	if p.err != nil {
		b.WriteString("\n    " + red.Render(p.err.Error()) + "\n")
	}
	b.WriteString("\n    " + cyan.Render("j/k") + dim.Render(" navigate  ") + cyan.Render("enter") + dim.Render(" run  ") + cyan.Render("esc") + dim.Render(" back  ") + cyan.Render("q") + dim.Render(" quit") + "\n")
	return b.String()
}

// Run starts a full-screen program for m.
func Run(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
