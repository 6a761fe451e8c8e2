package page

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TooltipState tracks what a tooltip is showing.
type TooltipState int

const (
	// TooltipReady shows the selection with translate and close controls.
	TooltipReady TooltipState = iota
	// TooltipPending waits for a result; it can still be closed.
	TooltipPending
	// TooltipTranslated shows the translation with a close control.
	TooltipTranslated
)

// Control is a button drawn on the tooltip.
type Control string

const (
	ControlTranslate Control = "translate"
	ControlClose     Control = "close"
)

const maxTooltipWidth = 60

var (
	tooltipBackground = lipgloss.Color("#D4D2CD")
	tooltipForeground = lipgloss.Color("#1B1C1C")
	tooltipMuted      = lipgloss.Color("#6B7280")

	tooltipStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(tooltipMuted).
			Background(tooltipBackground).
			Foreground(tooltipForeground).
			Padding(0, 1)

	controlStyle = lipgloss.NewStyle().
			Foreground(tooltipMuted).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(tooltipMuted).
			Italic(true)
)

// Tooltip is the overlay shown next to a selection.
type Tooltip struct {
	Source      string
	Translation string
	State       TooltipState
	X, Y        int
}

func newTooltip(text string, x, y int) *Tooltip {
	return &Tooltip{Source: text, X: x, Y: y}
}

// Content returns the text currently displayed.
func (t *Tooltip) Content() string {
	if t.State == TooltipTranslated {
		return t.Translation
	}
	return t.Source
}

// Controls returns the buttons currently displayed.
func (t *Tooltip) Controls() []Control {
	switch t.State {
	case TooltipReady:
		return []Control{ControlTranslate, ControlClose}
	default:
		return []Control{ControlClose}
	}
}

// Render draws the tooltip as a terminal box.
func (t *Tooltip) Render() string {
	var b strings.Builder
	b.WriteString(t.Content())
	b.WriteString("\n")

	if t.State == TooltipPending {
		b.WriteString(pendingStyle.Render("translating..."))
		b.WriteString(" ")
	}

	labels := make([]string, 0, 2)
	for _, c := range t.Controls() {
		labels = append(labels, controlStyle.Render("["+controlLabel(c)+"]"))
	}
	b.WriteString(strings.Join(labels, " "))

	style := tooltipStyle
	if lipgloss.Width(t.Content()) > maxTooltipWidth {
		style = style.Width(maxTooltipWidth)
	}
	return style.Render(b.String())
}

func controlLabel(c Control) string {
	if c == ControlClose {
		return "×"
	}
	return "Translate"
}

// Contains reports whether the point falls inside the rendered tooltip.
func (t *Tooltip) Contains(p Pointer) bool {
	rendered := t.Render()
	w, h := lipgloss.Width(rendered), lipgloss.Height(rendered)
	return p.X >= t.X && p.X < t.X+w && p.Y >= t.Y && p.Y < t.Y+h
}
