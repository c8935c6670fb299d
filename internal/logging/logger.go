package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Logger writes structured events to the terminal, an optional JSONL session
// file and in-process subscribers. Loggers derived with With share all three
// with their parent.
type Logger struct {
	hub   *hub
	attrs []slog.Attr
}

// Event is one log record as seen by sinks and subscribers.
type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Fields  map[string]any
}

type hub struct {
	debug    atomic.Bool
	terminal atomic.Bool
	pretty   bool

	mu     sync.RWMutex
	out    io.Writer
	file   *fileSink
	subs   map[uint64]func(Event)
	nextID uint64
}

func New(debug bool) *Logger {
	h := &hub{
		pretty: colorTerminal(),
		out:    os.Stderr,
		subs:   make(map[uint64]func(Event)),
	}
	h.debug.Store(debug)
	h.terminal.Store(true)
	return &Logger{hub: h}
}

// Field builds a structured field for any of the level methods.
func Field(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// With returns a logger that adds fields to every event.
func (l *Logger) With(fields ...slog.Attr) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{hub: l.hub, attrs: append(slices.Clip(l.attrs), fields...)}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}

// Debug events always reach the session file. The debug toggle only decides
// whether the terminal and subscribers see them.
func (l *Logger) Debug(msg string, fields ...slog.Attr) { l.log(slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...slog.Attr)  { l.log(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...slog.Attr)  { l.log(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...slog.Attr) { l.log(slog.LevelError, msg, fields) }

func (l *Logger) SetDebugEnabled(enabled bool) {
	if l != nil {
		l.hub.debug.Store(enabled)
	}
}

func (l *Logger) DebugEnabled() bool {
	return l != nil && l.hub.debug.Load()
}

// SetTerminalOutputEnabled turns terminal output on or off. The dashboard
// turns it off because it owns the screen.
func (l *Logger) SetTerminalOutputEnabled(enabled bool) {
	if l != nil {
		l.hub.terminal.Store(enabled)
	}
}

// SetOutput redirects terminal output. Output written to w is never colored.
func (l *Logger) SetOutput(w io.Writer) {
	if l == nil {
		return
	}
	l.hub.mu.Lock()
	l.hub.out = w
	l.hub.pretty = false
	l.hub.mu.Unlock()
}

// EnableFilePersistence starts a new JSONL session file, replacing any open
// one. maxBytes <= 0 selects the default rotation size.
func (l *Logger) EnableFilePersistence(maxBytes int64) error {
	if l == nil {
		return nil
	}
	sink, err := newFileSink(maxBytes)
	if err != nil {
		return err
	}
	return l.swapFile(sink)
}

// Close flushes and closes the session file. Terminal and subscriber output
// continue.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.swapFile(nil)
}

func (l *Logger) swapFile(next *fileSink) error {
	l.hub.mu.Lock()
	prev := l.hub.file
	l.hub.file = next
	l.hub.mu.Unlock()
	if prev == nil {
		return nil
	}
	return prev.Close()
}

// Subscribe registers fn for every published event and returns a function
// that removes it. fn runs on the logging goroutine and must not block.
func (l *Logger) Subscribe(fn func(Event)) func() {
	if l == nil {
		panic("logging.Logger.Subscribe: logger must not be nil")
	}
	if fn == nil {
		panic("logging.Logger.Subscribe: callback must not be nil")
	}
	h := l.hub
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (l *Logger) log(level slog.Level, msg string, fields []slog.Attr) {
	if l == nil {
		return
	}
	if len(l.attrs) > 0 {
		fields = append(slices.Clip(l.attrs), fields...)
	}
	event := Event{Time: time.Now(), Level: level, Message: msg, Fields: attrsToMap(fields)}

	h := l.hub
	h.mu.RLock()
	file, out, pretty := h.file, h.out, h.pretty
	subs := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	if file != nil {
		_ = file.WriteEvent(event)
	}
	if level == slog.LevelDebug && !h.debug.Load() {
		return
	}
	if h.terminal.Load() && out != nil {
		line := FormatEventLine(event)
		if pretty {
			line = FormatEventANSI(event)
		}
		_, _ = io.WriteString(out, line)
	}
	for _, fn := range subs {
		fn(event)
	}
}

// colorTerminal reports whether stderr output should be colored.
func colorTerminal() bool {
	term := os.Getenv("TERM")
	return term != "" && term != "dumb" && os.Getenv("NO_COLOR") == ""
}
