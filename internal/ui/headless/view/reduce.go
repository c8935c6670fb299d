package view

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
)

// Effect is work a reducer hands back to the model.
type Effect int

const (
	EffectNone Effect = iota
	EffectStart
	EffectStop
	EffectRefresh
	EffectMarkRead
	EffectBrowse
	EffectSave
	EffectDebugToggled
	// EffectQuit asks to quit, confirming first when feeds are running.
	EffectQuit
	// EffectQuitNow quits without asking.
	EffectQuitNow
)

// Conn is the slice of runtime state activation depends on.
type Conn struct {
	CanConnect bool
	Running    bool
	Connecting bool
}

func ReduceKey(s State, msg tea.KeyMsg, conn Conn) (State, tea.Cmd, Effect) {
	if s.Alert != "" {
		if msg.Type == tea.KeyEsc || key.Matches(msg, s.Keys.Activate) {
			s.Alert = ""
		}
		return s, nil, EffectNone
	}
	if s.QuitPrompt {
		return reduceQuitPrompt(s, msg)
	}

	overview := s.Tab == TabOverview
	switch {
	case key.Matches(msg, s.Keys.Quit):
		return s, nil, EffectQuit
	case key.Matches(msg, s.Keys.Refresh):
		return s, nil, EffectRefresh
	// ctrl+a moves the cursor to line start inside settings inputs.
	case overview && key.Matches(msg, s.Keys.MarkRead):
		return s, nil, EffectMarkRead
	case overview && s.LogsVisible && key.Matches(msg, s.Keys.Follow):
		s.FollowLogs = true
		s.LogView.GotoBottom()
		return s, nil, EffectNone
	case !overview && key.Matches(msg, s.Keys.Save):
		return s, nil, EffectSave
	case key.Matches(msg, s.Keys.Overview):
		return s.switchTab(TabOverview), nil, EffectNone
	case key.Matches(msg, s.Keys.Settings):
		return s.switchTab(TabSettings), nil, EffectNone
	case key.Matches(msg, s.Keys.NextFocus):
		return s.moveFocus(1), nil, EffectNone
	case key.Matches(msg, s.Keys.PrevFocus):
		return s.moveFocus(-1), nil, EffectNone
	}
	if _, typing := s.focusedInput(); !typing && key.Matches(msg, s.Keys.Activate) {
		next, effect := activate(s, conn)
		return next, nil, effect
	}
	s, cmd, _ := ReduceInput(s, msg)
	return s, cmd, EffectNone
}

func reduceQuitPrompt(s State, msg tea.KeyMsg) (State, tea.Cmd, Effect) {
	switch {
	case msg.Type == tea.KeyEsc:
		s.QuitPrompt = false
	case key.Matches(msg, s.Keys.Choose):
		s.QuitChoice = 1 - s.QuitChoice
	case key.Matches(msg, s.Keys.Activate):
		if s.QuitChoice == quitChoiceAccept {
			return s, nil, EffectQuitNow
		}
		s.QuitPrompt = false
	}
	return s, nil, EffectNone
}

// ReduceInput forwards msg to the focused settings input. The bool is false
// when no input has focus.
func ReduceInput(s State, msg tea.Msg) (State, tea.Cmd, bool) {
	idx, ok := s.focusedInput()
	if !ok {
		return s, nil, false
	}
	var cmd tea.Cmd
	s.Inputs[idx], cmd = s.Inputs[idx].Update(msg)
	return s.SyncDraft(), cmd, true
}

// OpenQuitPrompt shows the quit confirmation with Cancel preselected.
func (s State) OpenQuitPrompt() State {
	s.QuitPrompt = true
	s.QuitChoice = quitChoiceCancel
	return s
}

func ReduceMouse(s State, msg tea.MouseMsg, conn Conn) (State, tea.Cmd, Effect) {
	s.Hover = s.hitZone(msg)

	if s.Hover != "" && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		switch s.Hover {
		case zoneQuitCancel:
			s.QuitPrompt = false
			return s, nil, EffectNone
		case zoneQuitAccept:
			return s, nil, EffectQuitNow
		case zoneTabOverview:
			return s.switchTab(TabOverview), nil, EffectNone
		case zoneTabSettings:
			return s.switchTab(TabSettings), nil, EffectNone
		}
		if next, ok := s.focusOn(control(s.Hover)); ok {
			if _, typing := next.focusedInput(); typing {
				return next, nil, EffectNone
			}
			next, effect := activate(next, conn)
			return next, nil, effect
		}
	}

	if s.QuitPrompt || s.Alert != "" {
		return s, nil, EffectNone
	}
	var cmds []tea.Cmd
	scroll := func(vp *viewport.Model) {
		var cmd tea.Cmd
		*vp, cmd = vp.Update(msg)
		cmds = append(cmds, cmd)
	}
	if s.Tab == TabOverview {
		scroll(&s.FeedPane)
		scroll(&s.StatusPane)
	}
	if s.LogsVisible {
		scroll(&s.LogView)
		s.FollowLogs = s.LogView.AtBottom()
	}
	return s, tea.Batch(cmds...), EffectNone
}

func (s State) hitZone(msg tea.MouseMsg) string {
	for _, id := range s.hitTargets() {
		if z := zone.Get(id); z != nil && z.InBounds(msg) {
			return id
		}
	}
	return ""
}

// activate presses the focused control.
func activate(s State, conn Conn) (State, Effect) {
	switch s.focused() {
	case ctlConnect:
		switch {
		case conn.Connecting:
			return s, EffectNone
		case !conn.CanConnect:
			s.Alert = "Base URL and user token are required."
			return s, EffectNone
		case conn.Running:
			return s, EffectStop
		}
		return s, EffectStart
	case ctlRefresh:
		if !conn.Running {
			return s, EffectNone
		}
		return s, EffectRefresh
	case ctlLogs:
		s.LogsVisible = !s.LogsVisible
		if s.LogsVisible {
			s.FollowLogs = true
			s.LogView.GotoBottom()
		}
		s.Focus = min(s.Focus, s.FocusCount()-1)
		return s, EffectNone
	case ctlQuit:
		return s, EffectQuit
	case ctlDebug:
		s.Debug = !s.Debug
		return s.SyncDraft(), EffectDebugToggled
	case ctlBrowse:
		return s, EffectBrowse
	case ctlAutoConnect:
		s.AutoConnect = !s.AutoConnect
		return s.SyncDraft(), EffectNone
	case ctlSave:
		return s, EffectSave
	case ctlCancel:
		if s.Dirty {
			return s.RevertDraft(), EffectNone
		}
	}
	return s, EffectNone
}
