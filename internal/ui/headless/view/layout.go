package view

import (
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"feedsync/internal/ui/headless/theme"
)

const (
	paneGap            = 2
	frameInset         = 4
	minPageWidth       = 24
	statusPaneMinWidth = 24
	statusPaneSlack    = 6
	feedPaneMinWidth   = 32
	sideBySideMinWidth = 84
	paneRows           = 8
	tallPaneRows       = 10
	tallScreenRows     = 36
	formExtraRows      = 4
	formMinRows        = 12

	logReserveRows = 24
	logMinRows     = 8
	logChromeRows  = 3
	logMinViewRows = 3
	logInset       = 8
	logMinWidth    = 20
	pickerChrome   = 14
	pickerMinRows  = 8

	outerBorderRows = 2
	sectionGapRows  = 2
)

// ContentWidth is the usable terminal width.
func (s State) ContentWidth() int {
	width := max(s.Width, 1)
	// Some Windows terminals wrap when a styled line ends on the last column.
	if runtime.GOOS == "windows" && width > 1 {
		width--
	}
	return width
}

// PageWidth is the width available inside the outer frame.
func (s State) PageWidth() int {
	return max(s.ContentWidth()-theme.PanelStyle.GetHorizontalFrameSize(), minPageWidth)
}

func (s State) logPanelRows() int {
	return max(s.Height-logReserveRows, logMinRows)
}

// ResizeLogs sizes the log viewport for the window and rewraps its text.
func (s *State) ResizeLogs() {
	s.LogView.Width = max(s.PageWidth()-logInset, logMinWidth)
	s.LogView.Height = max(s.logPanelRows()-logChromeRows, logMinViewRows)
	s.rewrapLogs()
}

func (s *State) ResizePicker() {
	s.Picker.SetHeight(max(s.Height-pickerChrome, pickerMinRows))
}

func (s *State) rewrapLogs() {
	text := s.LogText
	if w := max(s.LogView.Width, 1); text != "" {
		text = ansi.Wrap(text, w, "")
	}
	s.LogView.SetContent(text)
}

// fitLogs shrinks the log viewport so the page fits above and below it.
func (s *State) fitLogs(others []string) {
	if s.Height <= 0 {
		return
	}
	want := max(s.logPanelRows()-logChromeRows, logMinViewRows)
	used := lipgloss.Height(strings.Join(others, "\n\n"))
	room := max(s.Height-used-outerBorderRows-sectionGapRows-frameInset, logMinViewRows)
	s.LogView.Height = min(want, room)
}

// AppendLog adds text to the log buffer, keeping at most limit lines. The
// view stays pinned to the bottom while following.
func (s *State) AppendLog(text string, limit int) {
	atBottom := s.LogView.AtBottom()
	s.LogText = appendLines(s.LogText, text, limit)
	s.rewrapLogs()
	if s.FollowLogs || atBottom {
		s.FollowLogs = true
		s.LogView.GotoBottom()
	}
}

func appendLines(current, next string, limit int) string {
	if limit <= 0 {
		return ""
	}
	lines := append(splitLines(current), splitLines(next)...)
	if over := len(lines) - limit; over > 0 {
		lines = lines[over:]
	}
	return strings.Join(lines, "\n")
}

func splitLines(text string) []string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// overviewLayout holds the outer widths of the two overview panes.
type overviewLayout struct {
	status  int
	feed    int
	rows    int
	stacked bool
}

func (s State) overviewLayout(rt Runtime) overviewLayout {
	page := s.PageWidth()
	natural := max(lipgloss.Width(statusLine(rt)), lipgloss.Width(joinRow(actionButtons(s, rt))))
	l := overviewLayout{
		status: min(max(natural+statusPaneSlack, statusPaneMinWidth), page),
		rows:   paneRows,
	}
	l.feed = page - l.status - paneGap
	if page < sideBySideMinWidth || l.feed < feedPaneMinWidth {
		l.status, l.feed, l.stacked = page, page, true
	}
	if s.Height >= tallScreenRows {
		l.rows = tallPaneRows
	}
	return l
}

// ResizePaneViewports fits the overview and settings viewports to the window.
func ResizePaneViewports(s *State, rt Runtime) {
	l := s.overviewLayout(rt)
	s.StatusPane.Width = max(l.status-frameInset, 1)
	s.StatusPane.Height = l.rows
	s.FeedPane.Width = max(l.feed-frameInset, 1)
	s.FeedPane.Height = l.rows
	s.FormPane.Width = max(s.PageWidth()-frameInset, 1)
	s.FormPane.Height = max(formMinRows, l.rows+formExtraRows)
}
