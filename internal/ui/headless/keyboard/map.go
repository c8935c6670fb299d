package keyboard

import "github.com/charmbracelet/bubbles/key"

// Map holds every binding the dashboard reacts to. It doubles as the
// help.KeyMap rendered in the footer.
type Map struct {
	NextFocus key.Binding
	PrevFocus key.Binding
	Overview  key.Binding
	Settings  key.Binding
	Activate  key.Binding
	Refresh   key.Binding
	MarkRead  key.Binding
	Follow    key.Binding
	Save      key.Binding
	Quit      key.Binding
	Choose    key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func New() Map {
	return Map{
		NextFocus: bind("tab/down", "next", "tab", "down"),
		PrevFocus: bind("shift+tab/up", "prev", "shift+tab", "up"),
		Overview:  bind("ctrl+left", "overview", "ctrl+left"),
		Settings:  bind("ctrl+right", "settings", "ctrl+right"),
		Activate:  bind("enter/space", "activate", "enter", " "),
		Refresh:   bind("ctrl+r", "refresh", "ctrl+r"),
		MarkRead:  bind("ctrl+a", "mark read", "ctrl+a"),
		Follow:    bind("ctrl+f", "follow logs", "ctrl+f"),
		Save:      bind("ctrl+s", "save", "ctrl+s"),
		Quit:      bind("ctrl+c", "quit", "ctrl+c"),
		// Choose flips between the two buttons of a confirmation dialog.
		Choose: bind("tab/arrows", "toggle", "tab", "up", "down", "left", "right"),
	}
}

func (m Map) ShortHelp() []key.Binding {
	return []key.Binding{m.NextFocus, m.Activate, m.Refresh, m.MarkRead, m.Settings, m.Quit}
}

func (m Map) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.NextFocus, m.PrevFocus, m.Activate},
		{m.Refresh, m.MarkRead, m.Follow},
		{m.Overview, m.Settings, m.Save, m.Quit},
	}
}
