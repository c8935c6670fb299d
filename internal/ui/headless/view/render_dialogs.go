package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"feedsync/internal/ui/headless/render"
	"feedsync/internal/ui/headless/theme"
)

const (
	dialogInset     = 8
	quitDialogMax   = 72
	alertDialogMax  = 78
	pickerDialogMax = 96
)

func dialog(lines []string, width int) string {
	return render.Frame(strings.Join(lines, "\n"), width, theme.PanelStyle)
}

func quitDialog(s *State) string {
	width := min(s.ContentWidth()-dialogInset, quitDialogMax)
	buttons := joinRow([]string{
		markButton(zoneQuitCancel, "Cancel", theme.ButtonState{Focused: s.QuitChoice == quitChoiceCancel, Hovered: s.Hover == zoneQuitCancel}),
		markButton(zoneQuitAccept, "Quit", theme.ButtonState{Focused: s.QuitChoice == quitChoiceAccept, Hovered: s.Hover == zoneQuitAccept}),
	})
	centered := lipgloss.PlaceHorizontal(max(width-frameInset, 1), lipgloss.Center, buttons)
	return dialog([]string{
		theme.TitleStyle.Render("Quit while connected?"),
		"This will stop all feeds.",
		centered,
		theme.HelpStyle.Render("tab/arrow switch • enter confirms"),
	}, width)
}

func alertDialog(s *State) string {
	return dialog([]string{
		theme.ErrorStyle.Render("Error"),
		s.Alert,
		theme.HelpStyle.Render("Press Enter or Esc to close"),
	}, min(s.ContentWidth()-dialogInset, alertDialogMax))
}

func pickerDialog(s *State) string {
	return dialog([]string{
		theme.TitleStyle.Render("Select Feeds File"),
		s.Picker.View(),
		theme.HelpStyle.Render("up/down move • space open • enter select • left/backspace up • esc close"),
	}, min(s.PageWidth(), pickerDialogMax))
}

// overlay dims the page and centers box on the screen below it.
func overlay(s *State, page, box string) string {
	return theme.ModalBackdrop.Render(page) + "\n" + lipgloss.Place(s.Width, s.Height, lipgloss.Center, lipgloss.Center, box)
}
