package headless

import (
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/logging"
	headlessview "feedsync/internal/ui/headless/view"
)

// mouseDrain is how long to wait after disabling mouse reporting so
// in-flight motion events are not echoed to the shell.
const mouseDrain = 120 * time.Millisecond

func (m *headlessModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		if _, ok := msg.(quitNowMsg); ok {
			m.cleanup()
			return m, tea.Quit
		}
		return m, nil
	}

	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.resize(ws)
		if !m.ui.PickerOpen {
			return m, nil
		}
	}
	if cmd, handled := m.updateRuntime(msg); handled {
		return m, cmd
	}
	if m.ui.PickerOpen {
		return m, m.updatePicker(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		next, cmd, effect := headlessview.ReduceKey(m.ui, msg, m.conn())
		m.ui = next
		return m, tea.Batch(cmd, m.dispatch(effect))
	case tea.MouseMsg:
		next, cmd, effect := headlessview.ReduceMouse(m.ui, msg, m.conn())
		m.ui = next
		return m, tea.Batch(cmd, m.dispatch(effect))
	}

	next, cmd, _ := headlessview.ReduceInput(m.ui, msg)
	m.ui = next
	return m, cmd
}

func (m *headlessModel) resize(ws tea.WindowSizeMsg) {
	m.ui = m.ui.WithWindowSize(ws.Width, ws.Height)
	m.ui.ResizeLogs()
	headlessview.ResizePaneViewports(&m.ui, m.runtimeView())
	m.ui.ResizePicker()
}

// updateRuntime handles messages fed by the controller and the ticker. They
// are processed even while a dialog owns input, since their handlers re-arm
// the inbox listeners.
func (m *headlessModel) updateRuntime(msg tea.Msg) (tea.Cmd, bool) {
	now := time.Now()
	switch msg := msg.(type) {
	case logMsg:
		m.ui.AppendLog(string(msg), logLineLimit)
		return waitFor(m.in.logs, func(s string) tea.Msg { return logMsg(s) }), true
	case statusMsg:
		m.applyRuntimeStatus(string(msg))
		return waitFor(m.in.statuses, func(s string) tea.Msg { return statusMsg(s) }), true
	case feedStateMsg:
		m.board.setState(feed.State(msg), now)
		return waitFor(m.in.feedStates, func(s feed.State) tea.Msg { return feedStateMsg(s) }), true
	case deliveryMsg:
		m.board.record(app.Delivery(msg), now)
		return waitFor(m.in.deliveries, func(d app.Delivery) tea.Msg { return deliveryMsg(d) }), true
	case tickMsg:
		m.ui = m.ui.WithTick()
		if m.board.due(now) {
			m.board.recompute(now)
		}
		return tickCmd(), true
	case startResultMsg:
		m.applyStartResult(msg.err)
		return nil, true
	case runDoneMsg:
		m.applyRunDone(msg.err)
		return nil, true
	case refreshResultMsg:
		m.refreshing = false
		if msg.err != nil {
			m.logger.Warn("refresh failed", logging.Field("error", msg.err))
			m.ui.Alert = "Refresh failed: " + msg.err.Error()
		}
		return nil, true
	case markReadResultMsg:
		if msg.err != nil {
			m.logger.Warn("mark read failed", logging.Field("count", len(msg.ids)), logging.Field("error", msg.err))
			m.ui.Alert = "Mark read failed: " + msg.err.Error()
			return nil, true
		}
		m.board.markRead(msg.ids)
		return nil, true
	}
	return nil, false
}

func (m *headlessModel) dispatch(effect headlessview.Effect) tea.Cmd {
	switch effect {
	case headlessview.EffectStart:
		return m.startCmd(false)
	case headlessview.EffectStop:
		m.stop()
	case headlessview.EffectRefresh:
		return m.refreshCmd()
	case headlessview.EffectMarkRead:
		return m.markReadCmd()
	case headlessview.EffectBrowse:
		return m.openPicker()
	case headlessview.EffectSave:
		m.saveSettings()
	case headlessview.EffectDebugToggled:
		m.logger.SetDebugEnabled(m.ui.Debug)
	case headlessview.EffectQuit:
		if m.running || m.connecting {
			m.ui = m.ui.OpenQuitPrompt()
			return nil
		}
		return m.quit()
	case headlessview.EffectQuitNow:
		return m.quit()
	}
	return nil
}

func (m *headlessModel) quit() tea.Cmd {
	m.quitting = true
	m.ui.QuitPrompt = false
	return tea.Sequence(
		func() tea.Msg { return tea.DisableMouse() },
		func() tea.Msg {
			time.Sleep(mouseDrain)
			return quitNowMsg{}
		},
	)
}

func (m *headlessModel) saveSettings() {
	if !m.ui.Dirty {
		return
	}
	if err := config.SaveSettings(config.SettingsFromOptions(m.currentOptions())); err != nil {
		m.logger.Warn("failed to save settings", logging.Field("error", err))
		m.ui.Alert = err.Error()
		return
	}
	m.ui = m.ui.SyncDraft().CommitDraft()
}

// openPicker starts the file picker in the folder of the current feeds
// file, or the working directory.
func (m *headlessModel) openPicker() tea.Cmd {
	dir := "."
	if current := m.ui.Entered().FeedsFile; current != "" {
		dir = filepath.Dir(current)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	m.ui.Picker.CurrentDirectory = dir
	m.ui.Picker.Path = ""
	m.ui.PickerOpen = true
	m.ui.ResizePicker()
	return m.ui.Picker.Init()
}

func (m *headlessModel) updatePicker(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "ctrl+c":
			m.ui.PickerOpen = false
			return m.dispatch(headlessview.EffectQuit)
		case "esc":
			m.ui.PickerOpen = false
			return nil
		case "left", "backspace":
			parent := filepath.Dir(m.ui.Picker.CurrentDirectory)
			if parent == m.ui.Picker.CurrentDirectory {
				return nil
			}
			m.ui.Picker.CurrentDirectory = parent
			return m.ui.Picker.Init()
		}
	}

	var cmd tea.Cmd
	m.ui.Picker, cmd = m.ui.Picker.Update(msg)
	if ok, path := m.ui.Picker.DidSelectFile(msg); ok {
		m.ui = m.ui.WithFeedsFile(path)
		return nil
	}
	if ok, path := m.ui.Picker.DidSelectDisabledFile(msg); ok {
		m.ui.PickerOpen = false
		m.ui.Alert = "Not a feeds file: " + filepath.Base(path)
		return nil
	}
	return cmd
}
