package headless

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/logging"
	"feedsync/internal/runtime"
	headlessview "feedsync/internal/ui/headless/view"
)

const (
	logLineLimit = 5_000
	// deliveryLimit bounds the recent events list.
	deliveryLimit = 50
	callTimeout   = 15 * time.Second
)

type (
	logMsg       string
	statusMsg    string
	feedStateMsg feed.State
	deliveryMsg  app.Delivery
	tickMsg      struct{}
	quitNowMsg   struct{}

	runDoneMsg        struct{ err error }
	startResultMsg    struct{ err error }
	refreshResultMsg  struct{ err error }
	markReadResultMsg struct {
		ids []string
		err error
	}
)

// inbox carries runtime callbacks into the update loop. Callbacks never
// block; the oldest queued value is dropped when a channel is full.
type inbox struct {
	logs       chan string
	statuses   chan string
	feedStates chan feed.State
	deliveries chan app.Delivery
}

type headlessModel struct {
	version string
	// base carries options the dashboard does not edit, such as transport
	// and store.
	base config.Options

	runner      *runtime.Controller
	logger      *logging.Logger
	program     *tea.Program
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	cleanupOnce sync.Once
	in          inbox

	running    bool
	connecting bool
	quitting   bool
	refreshing bool
	status     string
	kind       headlessview.StatusKind

	board feedBoard
	ui    headlessview.State
}
