package headless

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/logging"
	"feedsync/internal/runctx"
	"feedsync/internal/runstatus"
	"feedsync/internal/runtime"
	headlessview "feedsync/internal/ui/headless/view"
)

// currentOptions overlays what is entered on the settings tab on the
// startup options.
func (m *headlessModel) currentOptions() config.Options {
	entered := m.ui.Entered()
	opts := m.base
	opts.BaseURL = entered.BaseURL
	opts.Token = entered.Token
	opts.UserID = entered.UserID
	opts.FeedsFile = entered.FeedsFile
	opts.AutoConnect = entered.AutoConnect
	opts.Debug = entered.Debug
	return opts
}

func (m *headlessModel) conn() headlessview.Conn {
	entered := m.ui.Entered()
	return headlessview.Conn{
		CanConnect: entered.BaseURL != "" && entered.Token != "",
		Running:    m.running,
		Connecting: m.connecting,
	}
}

func (m *headlessModel) setStatus(status string, kind headlessview.StatusKind) {
	m.status = status
	m.kind = kind
}

// startCmd validates the entered options and starts the controller. Auto
// starts prefix their errors so a failed launch is told apart from a click.
func (m *headlessModel) startCmd(auto bool) tea.Cmd {
	opts := m.currentOptions()
	err := config.ValidateRequired(opts)
	if err == nil && opts.FeedsFile != "" {
		_, err = config.LoadFeeds(opts.FeedsFile)
	}
	if err != nil {
		m.ui.Alert = err.Error()
		if auto {
			m.ui.Alert = "Couldn't auto-connect due to: " + m.ui.Alert
		}
		return nil
	}

	m.connecting = true
	m.setStatus(runstatus.Connecting, headlessview.StatusConnecting)
	m.ui.Alert = ""
	m.board.clearFeeds(time.Now())

	hooks := runtime.StartHooks{
		OnStatus:    func(s string) { runctx.Offer(m.in.statuses, s) },
		OnFeedState: func(s feed.State) { runctx.Offer(m.in.feedStates, s) },
		OnDelivery:  func(d app.Delivery) { runctx.Offer(m.in.deliveries, d) },
		OnExit: func(err error) {
			if m.program != nil {
				m.program.Send(runDoneMsg{err: err})
			}
		},
	}
	return func() tea.Msg {
		return startResultMsg{err: m.runner.Start(opts, m.logger, hooks)}
	}
}

func (m *headlessModel) stop() {
	m.runner.Stop()
	m.setStatus("Stopping...", headlessview.StatusStopping)
}

// withTimeout runs call against the controller on a bounded context.
func (m *headlessModel) withTimeout(call func(context.Context) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, callTimeout)
		defer cancel()
		return call(ctx)
	}
}

func (m *headlessModel) refreshCmd() tea.Cmd {
	if !m.running || m.refreshing {
		return nil
	}
	m.refreshing = true
	return m.withTimeout(func(ctx context.Context) tea.Msg {
		return refreshResultMsg{err: m.runner.Refresh(ctx)}
	})
}

func (m *headlessModel) markReadCmd() tea.Cmd {
	if !m.running || len(m.board.unread) == 0 {
		return nil
	}
	ids := append([]string(nil), m.board.unread...)
	return m.withTimeout(func(ctx context.Context) tea.Msg {
		return markReadResultMsg{ids: ids, err: m.runner.MarkRead(ctx, ids)}
	})
}

var statusKinds = map[string]headlessview.StatusKind{
	runstatus.KeyLive:         headlessview.StatusLive,
	runstatus.KeyConnecting:   headlessview.StatusConnecting,
	runstatus.KeyReconnecting: headlessview.StatusConnecting,
	runstatus.KeyDegraded:     headlessview.StatusConnecting,
	runstatus.KeyOffline:      headlessview.StatusError,
	runstatus.KeyError:        headlessview.StatusError,
	runstatus.KeyStopped:      headlessview.StatusIdle,
}

func (m *headlessModel) applyRuntimeStatus(status string) {
	kind, ok := statusKinds[runstatus.Key(status)]
	if !ok {
		kind = m.kind
	}
	m.setStatus(status, kind)
	if kind == headlessview.StatusLive {
		m.running = true
		m.connecting = false
	}
}

func (m *headlessModel) applyRunDone(err error) {
	m.running, m.connecting, m.refreshing = false, false, false
	m.board.clearFeeds(time.Now())
	if err != nil {
		m.setStatus(runstatus.Error, headlessview.StatusError)
		m.ui.Alert = err.Error()
		return
	}
	m.setStatus(runstatus.Stopped, headlessview.StatusIdle)
	m.ui.Alert = ""
}

func (m *headlessModel) applyStartResult(err error) {
	m.connecting = false
	if err != nil {
		m.setStatus(runstatus.Error, headlessview.StatusError)
		m.ui.Alert = err.Error()
		return
	}
	m.running = true
	m.ui.Alert = ""
}

func (m *headlessModel) cleanup() {
	m.cleanupOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		if !m.runner.StopAndWait(5 * time.Second) {
			m.logger.Warn("runtime controller did not stop in time", logging.Field("timeout", "5s"))
		}
		m.logger.Debug("dashboard cleanup complete")
	})
}
