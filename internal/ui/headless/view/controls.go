package view

import "fmt"

const (
	TabOverview = iota
	TabSettings
)

// control identifies a focusable element. The value is also its mouse zone.
type control string

const (
	ctlConnect     control = "overview-connect"
	ctlRefresh     control = "overview-refresh"
	ctlLogs        control = "overview-logs"
	ctlQuit        control = "overview-quit"
	ctlDebug       control = "overview-logs-debug"
	ctlBrowse      control = "settings-browse"
	ctlAutoConnect control = "settings-auto-connect"
	ctlSave        control = "settings-save"
	ctlCancel      control = "settings-cancel"
)

const (
	zoneTabOverview = "tab-overview"
	zoneTabSettings = "tab-settings"
	zoneQuitCancel  = "dialog-quit-cancel"
	zoneQuitAccept  = "dialog-quit-accept"
)

func inputControl(i int) control {
	return control(fmt.Sprintf("settings-input-%d", i))
}

// controlsFor returns the focus order of tab.
func (s State) controlsFor(tab int) []control {
	if tab == TabOverview {
		out := []control{ctlConnect, ctlRefresh, ctlLogs, ctlQuit}
		if s.LogsVisible {
			out = append(out, ctlDebug)
		}
		return out
	}
	out := make([]control, 0, len(s.Inputs)+4)
	for i := range s.Inputs {
		out = append(out, inputControl(i))
	}
	return append(out, ctlBrowse, ctlAutoConnect, ctlSave, ctlCancel)
}

func (s State) FocusCount() int {
	return len(s.controlsFor(s.Tab))
}

func (s State) focused() control {
	list := s.controlsFor(s.Tab)
	if s.Focus < 0 || s.Focus >= len(list) {
		return ""
	}
	return list[s.Focus]
}

// focusedInput reports the index of the settings input holding focus.
func (s State) focusedInput() (int, bool) {
	if s.Tab != TabSettings || s.Focus >= len(s.Inputs) {
		return 0, false
	}
	return s.Focus, true
}

// focusOn moves focus to c, switching tabs when c lives on the other one.
func (s State) focusOn(c control) (State, bool) {
	for _, tab := range []int{TabOverview, TabSettings} {
		for i, candidate := range s.controlsFor(tab) {
			if candidate == c {
				s.Tab = tab
				s.Focus = i
				s.ApplyFocus()
				return s, true
			}
		}
	}
	return s, false
}

func (s State) moveFocus(delta int) State {
	n := s.FocusCount()
	s.Focus = ((s.Focus+delta)%n + n) % n
	s.ApplyFocus()
	return s
}

func (s State) switchTab(tab int) State {
	s.Tab = tab
	s.Focus = 0
	s.ApplyFocus()
	return s
}

// ApplyFocus gives the cursor to the focused settings input, if any.
func (s *State) ApplyFocus() {
	idx, ok := s.focusedInput()
	for i := range s.Inputs {
		if ok && i == idx {
			s.Inputs[i].Focus()
		} else {
			s.Inputs[i].Blur()
		}
	}
}

// hitTargets lists the mouse zones live on the current screen.
func (s State) hitTargets() []string {
	if s.QuitPrompt {
		return []string{zoneQuitCancel, zoneQuitAccept}
	}
	out := []string{zoneTabOverview, zoneTabSettings}
	for _, c := range s.controlsFor(s.Tab) {
		out = append(out, string(c))
	}
	return out
}
