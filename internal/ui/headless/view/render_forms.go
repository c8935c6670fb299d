package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"feedsync/internal/ui/headless/render"
	"feedsync/internal/ui/headless/theme"
)

const labelWidth = 11

func formRow(label, control string) string {
	return fmt.Sprintf("%-*s %s", labelWidth, label+":", control)
}

func renderSettings(s *State) string {
	inputWidth := max(s.FormPane.Width-labelWidth-paneGap, 16)
	focus := s.focused()

	var rows []string
	for i, f := range settingsFields {
		label := f.label
		if focus == inputControl(i) {
			label = theme.FocusStyle.Render("-> " + label)
		}
		s.Inputs[i].Width = inputWidth
		rows = append(rows, zone.Mark(string(inputControl(i)), formRow(label, s.Inputs[i].View())))
	}
	rows = append(rows, lipgloss.NewStyle().PaddingLeft(labelWidth+1).Render(button(s, ctlBrowse, "Choose File", false)))

	check := checkbox(s.AutoConnect, "Auto-connect")
	label := "Auto"
	switch {
	case focus == ctlAutoConnect:
		label = theme.FocusStyle.Render("-> Auto")
	case s.Hover == string(ctlAutoConnect):
		check = theme.Fg(theme.ColorBright).Render(check)
	}
	rows = append(rows, zone.Mark(string(ctlAutoConnect), formRow(label, check)))

	rows = append(rows, "", joinRow([]string{
		button(s, ctlSave, "Save", !s.Dirty),
		button(s, ctlCancel, "Cancel", !s.Dirty),
	}))
	if s.Dirty {
		rows = append(rows, theme.HelpStyle.Render("unsaved changes"))
	}

	s.FormPane.SetContent(strings.Join(rows, "\n"))
	return render.Frame(s.FormPane.View(), s.PageWidth(), theme.PanelStyle)
}

func checkbox(on bool, label string) string {
	if on {
		return "[x] " + label
	}
	return "[ ] " + label
}

func renderLogs(s *State) string {
	toolbar := lipgloss.JoinHorizontal(lipgloss.Center,
		theme.TitleStyle.Render("Logs"), "  ",
		button(s, ctlDebug, checkbox(s.Debug, "Debug"), false), "  ",
		theme.HelpStyle.Render("ctrl+f follow"),
	)
	body := withScrollbar(s.LogView.View(), s.LogView.Width, s.LogView.Height, s.LogView.ScrollPercent())
	return render.Frame(toolbar+"\n"+body, s.PageWidth(), theme.PanelStyle)
}
