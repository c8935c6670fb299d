package view

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"feedsync/internal/ui/headless/health"
	"feedsync/internal/ui/headless/render"
	"feedsync/internal/ui/headless/theme"
)

// DeliveryLine is one entry of the recent events list.
type DeliveryLine struct {
	ID     string
	Feed   string
	Op     string
	Text   string
	Target string
	Read   bool
}

// Runtime is the read-only runtime state the view draws.
type Runtime struct {
	BuildVersion string
	Running      bool
	Connecting   bool
	Status       string
	StatusKind   StatusKind
	CanConnect   bool
	Feeds        []health.Row
	HealthDetail string
	Deliveries   []DeliveryLine
	Unread       int
}

func (rt Runtime) idle() bool {
	return !rt.Running && !rt.Connecting
}

// shimmering reports whether the status frame should animate.
func (rt Runtime) shimmering() bool {
	return rt.Connecting || rt.StatusKind == StatusConnecting
}

// RenderApp draws the whole screen, with any open dialog over it.
func RenderApp(s *State, rt Runtime) string {
	if s.Width == 0 {
		return "initializing..."
	}
	page := renderPage(s, rt)
	switch {
	case s.PickerOpen:
		return overlay(s, page, pickerDialog(s))
	case s.Alert != "":
		return overlay(s, page, alertDialog(s))
	case s.QuitPrompt:
		return overlay(s, page, quitDialog(s))
	}
	return page
}

func renderPage(s *State, rt Runtime) string {
	header := theme.TitleStyle.Render(fmt.Sprintf("feedsync (%s)", rt.BuildVersion))
	tabs := tabBar(s)
	footer := s.Help.View(s.Keys)

	var body string
	if s.Tab == TabOverview {
		body = renderOverview(s, rt)
	} else {
		body = renderSettings(s)
		footer += " • ctrl+s save"
	}

	sections := []string{header, tabs, body}
	if s.Tab == TabOverview && s.LogsVisible {
		s.fitLogs([]string{header, tabs, body, footer})
		sections = append(sections, renderLogs(s))
	}
	sections = append(sections, theme.HelpStyle.Render(footer))
	return render.Frame(strings.Join(sections, "\n\n"), s.ContentWidth(), theme.PanelStyle)
}

func actionButtons(s State, rt Runtime) []string {
	logs := "Show Logs"
	if s.LogsVisible {
		logs = "Hide Logs"
	}
	return []string{
		connectToggle(&s, rt),
		button(&s, ctlRefresh, "Refresh", !rt.Running),
		button(&s, ctlLogs, logs, false),
		button(&s, ctlQuit, "Quit", false),
	}
}

// connectToggle is a two segment switch. The lit segment shows the current
// state; while connecting the left segment pulses.
func connectToggle(s *State, rt Runtime) string {
	on, off := theme.SegmentOnStyle, theme.SegmentOffStyle
	divider := theme.SegmentStyle.Render("|")

	var left, right string
	switch {
	case rt.idle() && !rt.CanConnect:
		dim := theme.SegmentDimStyle
		return button(s, ctlConnect, dim.Render("Connect")+divider+dim.Render("Disconnect"), true)
	case rt.Connecting:
		left, right = on.Render(pulseText("Connecting...", s.Phase)), off.Render("Disconnect")
	case rt.Running:
		left, right = off.Render("Connect"), on.Render("Disconnect")
	default:
		left, right = on.Render("Connect"), off.Render("Disconnect")
	}
	return button(s, ctlConnect, left+divider+right, false)
}

func renderOverview(s *State, rt Runtime) string {
	l := s.overviewLayout(rt)
	ResizePaneViewports(s, rt)

	actions := flowRow(actionButtons(*s, rt), s.StatusPane.Width)
	rows := max(lipgloss.Height(actions)+3, 6)
	s.StatusPane.Height = max(s.StatusPane.Height, rows)
	if !l.stacked {
		s.FeedPane.Height = max(s.FeedPane.Height, rows)
	}

	s.StatusPane.SetContent(statusLine(rt) + "\n\n" + actions)
	status := render.Frame(s.StatusPane.View(), l.status, theme.PanelStyle)
	if rt.shimmering() {
		status = render.Shimmer(status, s.Phase)
	}

	s.FeedPane.SetContent(feedPanel(rt, s.FeedPane.Width, s.FeedPane.Height))
	feeds := render.Frame(s.FeedPane.View(), l.feed, theme.PanelStyle)

	if l.stacked {
		return status + "\n\n" + feeds
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, status, strings.Repeat(" ", paneGap), feeds)
}

func feedPanel(rt Runtime, width, height int) string {
	title := theme.TitleStyle.Render("Feeds")
	if rt.idle() {
		notice := lipgloss.NewStyle().
			Width(max(width, 8)).
			Height(max(height-1, 2)).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorMuted).
			Render("Not connected")
		return title + "\n" + notice
	}

	width = max(width, 10)
	lines := []string{title}
	if len(rt.Feeds) == 0 {
		lines = append(lines, theme.HelpStyle.Render(cmp.Or(rt.HealthDetail, "No feeds running")))
	}
	for _, row := range rt.Feeds {
		text := row.Name
		if row.Reason != "" {
			text += " " + theme.HelpStyle.Render(row.Reason)
		}
		lines = append(lines, healthDot(row.Kind)+" "+ansi.Truncate(text, width-2, "…"))
	}
	if len(rt.Feeds) > 0 && rt.HealthDetail != "" {
		lines = append(lines, theme.HelpStyle.Render(rt.HealthDetail))
	}

	heading := "Recent events"
	if rt.Unread > 0 {
		heading = fmt.Sprintf("Recent events (%d unread, ctrl+a marks read)", rt.Unread)
	}
	lines = append(lines, "", theme.TitleStyle.Render(heading))
	if len(rt.Deliveries) == 0 {
		lines = append(lines, theme.HelpStyle.Render("Nothing yet"))
	}
	for i := len(rt.Deliveries) - 1; i >= 0; i-- {
		lines = append(lines, deliveryRow(rt.Deliveries[i], width))
	}
	return strings.Join(lines, "\n")
}

func deliveryRow(d DeliveryLine, width int) string {
	prefix := opBadge(d.Op) + " " + theme.HelpStyle.Render(d.Feed) + " "
	text := d.Text
	if d.Target != "" {
		text += " -> " + d.Target
	}
	text = ansi.Truncate(text, max(width-ansi.StringWidth(prefix), 1), "…")
	if d.Feed == "notifications" && d.Op != "delete" && !d.Read {
		text = theme.UnreadStyle.Render(text)
	}
	return prefix + text
}
