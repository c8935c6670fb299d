package view

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"feedsync/internal/config"
)

var (
	stopped = Conn{CanConnect: true}
	running = Conn{CanConnect: true, Running: true}
)

func focusedOn(t *testing.T, s State, c control) State {
	t.Helper()
	next, ok := s.focusOn(c)
	if !ok {
		t.Fatalf("focusOn(%q) failed", c)
	}
	return next
}

func TestReduceKeyShortcuts(t *testing.T) {
	s := NewState(config.Options{})

	if _, _, effect := ReduceKey(s, tea.KeyMsg{Type: tea.KeyCtrlR}, running); effect != EffectRefresh {
		t.Fatalf("ReduceKey(ctrl+r) = %v, want EffectRefresh", effect)
	}
	if _, _, effect := ReduceKey(s, tea.KeyMsg{Type: tea.KeyCtrlA}, running); effect != EffectMarkRead {
		t.Fatalf("ReduceKey(ctrl+a) = %v, want EffectMarkRead", effect)
	}
	if _, _, effect := ReduceKey(s, tea.KeyMsg{Type: tea.KeyCtrlC}, running); effect != EffectQuit {
		t.Fatalf("ReduceKey(ctrl+c) = %v, want EffectQuit", effect)
	}

	settings := s.switchTab(TabSettings)
	if _, _, effect := ReduceKey(settings, tea.KeyMsg{Type: tea.KeyCtrlA}, running); effect != EffectNone {
		t.Fatalf("ReduceKey(ctrl+a) on settings = %v, want EffectNone", effect)
	}
	if _, _, effect := ReduceKey(settings, tea.KeyMsg{Type: tea.KeyCtrlS}, running); effect != EffectSave {
		t.Fatalf("ReduceKey(ctrl+s) on settings = %v, want EffectSave", effect)
	}
}

func TestReduceKeyAlertSwallowsInput(t *testing.T) {
	s := NewState(config.Options{})
	s.Alert = "boom"

	next, _, effect := ReduceKey(s, tea.KeyMsg{Type: tea.KeyCtrlR}, running)
	if effect != EffectNone || next.Alert != "boom" {
		t.Fatalf("ReduceKey() = %v, alert %q", effect, next.Alert)
	}
	next, _, _ = ReduceKey(s, tea.KeyMsg{Type: tea.KeyEsc}, running)
	if next.Alert != "" {
		t.Fatalf("esc did not close the alert")
	}
}

func TestReduceKeyQuitPrompt(t *testing.T) {
	s := NewState(config.Options{}).OpenQuitPrompt()

	next, _, effect := ReduceKey(s, tea.KeyMsg{Type: tea.KeyEnter}, running)
	if effect != EffectNone || next.QuitPrompt {
		t.Fatalf("enter on Cancel = %v, prompt open %v", effect, next.QuitPrompt)
	}

	toggled, _, _ := ReduceKey(s, tea.KeyMsg{Type: tea.KeyTab}, running)
	if _, _, effect := ReduceKey(toggled, tea.KeyMsg{Type: tea.KeyEnter}, running); effect != EffectQuitNow {
		t.Fatalf("enter on Quit = %v, want EffectQuitNow", effect)
	}
}

func TestReduceKeyTypesIntoFocusedInput(t *testing.T) {
	s := NewState(config.Options{}).switchTab(TabSettings)

	next, _, effect := ReduceKey(s, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")}, stopped)
	if effect != EffectNone || next.Entered().BaseURL != "h" || !next.Dirty {
		t.Fatalf("typing: effect %v base %q dirty %v", effect, next.Entered().BaseURL, next.Dirty)
	}
	next, _, _ = ReduceKey(next, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, stopped)
	if got := next.Inputs[0].Value(); got != "h " {
		t.Fatalf("space in input = %q, want typed", got)
	}
}

func TestActivateConnectToggle(t *testing.T) {
	s := focusedOn(t, NewState(config.Options{}), ctlConnect)

	next, effect := activate(s, Conn{})
	if effect != EffectNone || next.Alert == "" {
		t.Fatalf("connect without credentials = %v, alert %q", effect, next.Alert)
	}
	if _, effect := activate(s, stopped); effect != EffectStart {
		t.Fatalf("connect = %v, want EffectStart", effect)
	}
	if _, effect := activate(s, running); effect != EffectStop {
		t.Fatalf("disconnect = %v, want EffectStop", effect)
	}
	if _, effect := activate(s, Conn{CanConnect: true, Connecting: true}); effect != EffectNone {
		t.Fatalf("connect while connecting = %v, want none", effect)
	}

	s = focusedOn(t, s, ctlRefresh)
	if _, effect := activate(s, stopped); effect != EffectNone {
		t.Fatalf("refresh while stopped = %v, want none", effect)
	}
	if _, effect := activate(s, running); effect != EffectRefresh {
		t.Fatalf("refresh = %v, want EffectRefresh", effect)
	}
}

func TestActivateLogsTogglesDebugControl(t *testing.T) {
	s := focusedOn(t, NewState(config.Options{}), ctlLogs)
	shown, _ := activate(s, running)
	if !shown.LogsVisible || shown.FocusCount() != 5 {
		t.Fatalf("show logs: visible=%v FocusCount=%d", shown.LogsVisible, shown.FocusCount())
	}

	shown = focusedOn(t, shown, ctlDebug)
	debug, effect := activate(shown, running)
	if effect != EffectDebugToggled || !debug.Debug || !debug.Draft.Debug {
		t.Fatalf("debug toggle: effect %v debug %v draft %v", effect, debug.Debug, debug.Draft.Debug)
	}

	// Hiding the logs while Debug is focused must keep focus in range.
	debug.LogsVisible = false
	if got := debug.focused(); got != "" {
		t.Fatalf("focused() past the end = %q, want none", got)
	}
}

func TestActivateSettingsDraft(t *testing.T) {
	s := NewState(config.Options{BaseURL: "https://blog.example.com", Token: "t"})

	s = focusedOn(t, s, ctlAutoConnect)
	next, _ := activate(s, stopped)
	if !next.AutoConnect || !next.Dirty {
		t.Fatalf("auto-connect toggle: AutoConnect=%v dirty=%v", next.AutoConnect, next.Dirty)
	}

	next = focusedOn(t, next, ctlCancel)
	reverted, _ := activate(next, stopped)
	if reverted.AutoConnect || reverted.Dirty {
		t.Fatalf("cancel: AutoConnect=%v dirty=%v", reverted.AutoConnect, reverted.Dirty)
	}

	s = focusedOn(t, s, ctlBrowse)
	if _, effect := activate(s, stopped); effect != EffectBrowse {
		t.Fatalf("browse = %v, want EffectBrowse", effect)
	}
}

func TestFocusOnFindsEveryControl(t *testing.T) {
	s := NewState(config.Options{})
	s.LogsVisible = true
	for _, tab := range []int{TabOverview, TabSettings} {
		for i, c := range s.controlsFor(tab) {
			next, ok := s.focusOn(c)
			if !ok || next.Tab != tab || next.Focus != i || next.focused() != c {
				t.Fatalf("focusOn(%q) = tab %d focus %d ok %v", c, next.Tab, next.Focus, ok)
			}
		}
	}
	if _, ok := s.focusOn("nope"); ok {
		t.Fatalf("focusOn(unknown) ok = true")
	}
}

func TestMoveFocusWraps(t *testing.T) {
	s := NewState(config.Options{})
	if got := s.moveFocus(-1).focused(); got != ctlQuit {
		t.Fatalf("moveFocus(-1) = %q, want %q", got, ctlQuit)
	}
	if got := s.moveFocus(4).focused(); got != ctlConnect {
		t.Fatalf("moveFocus(4) = %q, want %q", got, ctlConnect)
	}
}

func TestWithFeedsFileClosesPicker(t *testing.T) {
	s := NewState(config.Options{})
	s.PickerOpen = true
	next := s.WithFeedsFile("/tmp/feeds.yaml")
	if next.PickerOpen || next.Entered().FeedsFile != "/tmp/feeds.yaml" || !next.Dirty {
		t.Fatalf("WithFeedsFile: open %v file %q dirty %v", next.PickerOpen, next.Entered().FeedsFile, next.Dirty)
	}
	if committed := next.CommitDraft(); committed.Dirty || committed.Saved.FeedsFile != "/tmp/feeds.yaml" {
		t.Fatalf("CommitDraft: dirty %v saved %q", committed.Dirty, committed.Saved.FeedsFile)
	}
}
