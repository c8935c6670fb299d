package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"feedsync/internal/ui/headless/theme"
)

const borderRunes = "╭╮╰╯─│"

// Frame renders content inside style so the result is width cells wide.
func Frame(content string, width int, style lipgloss.Style) string {
	inner := max(width-style.GetHorizontalFrameSize(), 1)
	return style.Width(inner).Render(content)
}

// Shimmer recolors the rounded border of a rendered frame along the
// shimmer gradient. Advancing phase moves the gradient.
func Shimmer(framed string, phase int) string {
	lines := strings.Split(framed, "\n")
	last := len(lines) - 1
	for y, line := range lines {
		if y == 0 || y == last {
			lines[y] = shimmerBorderRow(line, y, phase)
		} else {
			lines[y] = shimmerSides(line, y, phase)
		}
	}
	return strings.Join(lines, "\n")
}

func shimmerBorderRow(line string, y, phase int) string {
	var b strings.Builder
	for x, r := range []rune(line) {
		if strings.ContainsRune(borderRunes, r) {
			b.WriteString(paint(string(r), x, y, phase))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// shimmerSides only touches the outer bars; the body may carry its own
// escape sequences.
func shimmerSides(line string, y, phase int) string {
	body, ok := strings.CutPrefix(line, "│")
	if !ok {
		return line
	}
	end := strings.LastIndex(body, "│")
	if end < 0 {
		return line
	}
	rightX := 1 + ansi.StringWidth(body[:end])
	return paint("│", 0, y, phase) + body[:end] + paint("│", rightX, y, phase) + body[end+len("│"):]
}

func paint(s string, x, y, phase int) string {
	position := float64(x+y)/3 - float64(phase)*0.35
	return theme.Fg(theme.ShimmerColor(position)).Render(s)
}
