package theme

import "github.com/charmbracelet/lipgloss"

var (
	PanelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	FocusStyle    = lipgloss.NewStyle().Foreground(ColorGood)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorBad)
	HelpStyle     = lipgloss.NewStyle().Foreground(ColorMuted)
	ModalBackdrop = lipgloss.NewStyle().Foreground(ColorFaint)
	UnreadStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)

	SegmentStyle    = lipgloss.NewStyle().Padding(0, 1)
	SegmentOnStyle  = SegmentStyle.Bold(true).Foreground(lipgloss.Color("0")).Background(ColorGood)
	SegmentOffStyle = SegmentStyle.Foreground(ColorMuted).Background(ColorSurface)
	SegmentDimStyle = lipgloss.NewStyle().Foreground(ColorFaint)
)

// dashedBorder marks a button that cannot be pressed.
var dashedBorder = lipgloss.Border{
	Top: "╌", Bottom: "╌", Left: "┊", Right: "┊",
	TopLeft: "┌", TopRight: "┐", BottomLeft: "└", BottomRight: "┘",
}

// ButtonState describes how a clickable control is drawn.
type ButtonState struct {
	Focused  bool
	Hovered  bool
	Disabled bool
}

var buttonBase = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder())

// Button returns the style for a button in state s. Focus wins over hover.
func Button(s ButtonState) lipgloss.Style {
	style := buttonBase
	if s.Disabled {
		// A focused disabled button keeps the solid border so focus stays visible.
		if !s.Focused {
			style = style.Border(dashedBorder)
		}
		if s.Focused || s.Hovered {
			return style.BorderForeground(lipgloss.Color("255")).Foreground(ColorText)
		}
		return style.BorderForeground(ColorFaint).Foreground(ColorFaint)
	}
	switch {
	case s.Focused:
		return style.BorderForeground(ColorGood).Foreground(ColorGood)
	case s.Hovered:
		return style.BorderForeground(ColorBright).Foreground(ColorBright)
	}
	return style
}

// Tab returns the style for a tab label.
func Tab(active, hovered bool) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true).Border(lipgloss.NormalBorder())
	switch {
	case active:
		return style.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("27")).BorderForeground(ColorInfo)
	case hovered:
		return style.Foreground(ColorBright).Background(ColorSurface).BorderForeground(ColorBright)
	}
	return style.Foreground(ColorMuted).Background(ColorSurface).BorderForeground(ColorFaint)
}

// Op returns the badge style for a delivery operation.
func Op(op string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch op {
	case "insert":
		return style.Foreground(ColorGood)
	case "update":
		return style.Foreground(ColorInfo)
	case "delete":
		return style.Foreground(ColorBad)
	}
	return HelpStyle
}

// Fg is shorthand for a style with only a foreground color.
func Fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}
