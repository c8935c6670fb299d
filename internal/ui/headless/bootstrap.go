package headless

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/logging"
	"feedsync/internal/runctx"
	"feedsync/internal/runstatus"
	"feedsync/internal/runtime"
	headlessview "feedsync/internal/ui/headless/view"
)

const tickInterval = 120 * time.Millisecond

// Run shows the dashboard until the user quits. Saved settings fill in
// whatever opts leaves empty.
func Run(ctx context.Context, version string, opts config.Options) {
	defer resetMouseTracking()

	if saved, err := config.LoadSettings(); err == nil {
		opts = config.MergeOptionsWithSettings(opts, saved)
	}

	logger := logging.New(false)
	logger.SetDebugEnabled(opts.Debug)
	if err := logger.EnableFilePersistence(0); err != nil {
		logger.Warn("failed to enable file log persistence", logging.Field("error", err))
	}
	logger.SetTerminalOutputEnabled(false)
	logger.Info("starting feedsync dashboard", logging.Field("version", version))

	m := newHeadlessModel(ctx, version, opts, logger)
	zone.NewGlobal()
	m.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	_, runErr := m.program.Run()
	m.cleanup()

	if err := logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

// resetMouseTracking turns off every mouse reporting mode in case the
// program exited without restoring the terminal.
func resetMouseTracking() {
	_, _ = os.Stdout.WriteString("\x1b[?1000l\x1b[?1002l\x1b[?1003l\x1b[?1006l\x1b[?1015l")
}

func newHeadlessModel(ctx context.Context, version string, opts config.Options, logger *logging.Logger) *headlessModel {
	if logger == nil {
		panic("headless: logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	m := &headlessModel{
		version: version,
		base:    opts,
		runner:  runtime.NewController(runCtx),
		logger:  logger,
		ctx:     runCtx,
		cancel:  cancel,
		in: inbox{
			logs:       make(chan string, 512),
			statuses:   make(chan string, 16),
			feedStates: make(chan feed.State, 32),
			deliveries: make(chan app.Delivery, 256),
		},
		status: runstatus.Stopped,
		kind:   headlessview.StatusIdle,
		board:  newFeedBoard(),
		ui:     headlessview.NewState(opts),
	}
	m.unsubscribe = logger.Subscribe(func(event logging.Event) {
		runctx.Offer(m.in.logs, logging.FormatEventANSI(event))
	})
	return m
}

func (m *headlessModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitFor(m.in.logs, func(s string) tea.Msg { return logMsg(s) }),
		waitFor(m.in.statuses, func(s string) tea.Msg { return statusMsg(s) }),
		waitFor(m.in.feedStates, func(s feed.State) tea.Msg { return feedStateMsg(s) }),
		waitFor(m.in.deliveries, func(d app.Delivery) tea.Msg { return deliveryMsg(d) }),
		tickCmd(),
	}
	if m.ui.AutoConnect && m.conn().CanConnect {
		cmds = append(cmds, m.startCmd(true))
	}
	return tea.Batch(cmds...)
}

// waitFor reads one value from ch and wraps it as a message. The update loop
// re-arms it after each message.
func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
