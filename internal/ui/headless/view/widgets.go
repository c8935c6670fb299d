package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"feedsync/internal/ui/headless/health"
	"feedsync/internal/ui/headless/theme"
)

// StatusKind selects the color of the connection status.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusConnecting
	StatusLive
	StatusStopping
	StatusError
)

var statusColors = map[StatusKind]lipgloss.TerminalColor{
	StatusIdle:       theme.ColorMuted,
	StatusConnecting: theme.ColorWarn,
	StatusLive:       theme.ColorGood,
	StatusStopping:   theme.ColorStale,
	StatusError:      theme.ColorBad,
}

var healthColors = map[health.Kind]lipgloss.TerminalColor{
	health.Active: theme.ColorGood,
	health.Warn:   theme.ColorWarn,
	health.Stale:  theme.ColorStale,
}

var opGlyphs = map[string]string{"insert": "+", "update": "~", "delete": "-"}

func statusLine(rt Runtime) string {
	return "Status: " + theme.Fg(statusColors[rt.StatusKind]).Render(rt.Status)
}

// healthDot is the colored bullet in front of a feed row.
func healthDot(kind health.Kind) string {
	color, ok := healthColors[kind]
	if !ok {
		color = theme.ColorBad
	}
	return theme.Fg(color).Render("●")
}

// opBadge tags a delivered event with its operation.
func opBadge(op string) string {
	glyph, ok := opGlyphs[op]
	if !ok {
		glyph = "?"
	}
	return theme.Op(op).Render(glyph)
}

// pulseText colors each rune along the shimmer gradient.
func pulseText(value string, phase int) string {
	var b strings.Builder
	for i, r := range []rune(value) {
		b.WriteString(theme.Fg(theme.ShimmerColor(float64(i)/2 - float64(phase)*0.4)).Render(string(r)))
	}
	return b.String()
}

func markButton(id, label string, st theme.ButtonState) string {
	return zone.Mark(id, theme.Button(st).Render(label))
}

// button renders control c, reading focus and hover from s.
func button(s *State, c control, label string, disabled bool) string {
	return markButton(string(c), label, theme.ButtonState{
		Focused:  s.focused() == c,
		Hovered:  s.Hover == string(c),
		Disabled: disabled,
	})
}

func tabBar(s *State) string {
	tabs := []struct {
		tab   int
		id    string
		label string
	}{
		{TabOverview, zoneTabOverview, " Overview "},
		{TabSettings, zoneTabSettings, " Settings "},
	}
	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		style := theme.Tab(s.Tab == t.tab, s.Hover == t.id)
		parts = append(parts, zone.Mark(t.id, style.Render(t.label)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, parts...)
}

func joinRow(items []string) string {
	parts := make([]string, 0, 2*len(items))
	for i, item := range items {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, item)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// flowRow lays items out left to right, wrapping to a new row when the next
// item would exceed width.
func flowRow(items []string, width int) string {
	var rows, row []string
	used := 0
	for _, item := range items {
		w := lipgloss.Width(item)
		if len(row) > 0 && used+1+w > width {
			rows = append(rows, joinRow(row))
			row, used = nil, 0
		}
		if len(row) > 0 {
			used++
		}
		row = append(row, item)
		used += w
	}
	if len(row) > 0 {
		rows = append(rows, joinRow(row))
	}
	return strings.Join(rows, "\n")
}

// withScrollbar pads or clips content to height rows of width cells and adds
// a one column scrollbar on the right.
func withScrollbar(content string, width, height int, percent float64) string {
	if height <= 0 {
		return content
	}
	width = max(width, 1)
	lines := strings.Split(content, "\n")
	thumb := min(max(int(percent*float64(height-1)), 0), height-1)
	track := theme.Fg(theme.ColorTrack).Render("┊")
	knob := theme.Fg(theme.ColorText).Render("▯")

	out := make([]string, height)
	for y := range out {
		var line string
		if y < len(lines) {
			line = ansi.Cut(lines[y], 0, width)
		}
		line += strings.Repeat(" ", max(width-ansi.StringWidth(line), 0))
		bar := track
		if y == thumb {
			bar = knob
		}
		out[y] = line + " " + bar
	}
	return strings.Join(out, "\n")
}
