package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"feedsync/internal/ui/headless/theme"
)

func TestFrameStaysWithinWidth(t *testing.T) {
	out := Frame("hello", 20, theme.PanelStyle)
	lines := strings.Split(out, "\n")
	want := ansi.StringWidth(lines[0])
	if want > 20 {
		t.Fatalf("frame width = %d, want at most 20", want)
	}
	for _, line := range lines {
		if got := ansi.StringWidth(line); got != want {
			t.Fatalf("line %q width = %d, want %d", line, got, want)
		}
	}
}

func TestShimmerKeepsText(t *testing.T) {
	framed := Frame("body text", 24, lipgloss.NewStyle().Border(lipgloss.RoundedBorder()))
	out := Shimmer(framed, 3)
	if got, want := ansi.Strip(out), framed; got != want {
		t.Fatalf("Shimmer() stripped = %q, want %q", got, want)
	}
}

func TestShimmerSidesIgnoresUnframedLines(t *testing.T) {
	if got := shimmerSides("plain", 1, 0); got != "plain" {
		t.Fatalf("shimmerSides() = %q, want unchanged", got)
	}
}
