package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerCloseStopsFilePersistence(t *testing.T) {
	tmp := t.TempDir()
	logger := New(true)
	logger.SetTerminalOutputEnabled(false)

	logger.hub.file = openTestSink(t, tmp, "20260221-120001", 1024)

	logger.Info("before close")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger.Info("after close")

	entries, err := os.ReadDir(tmp)
	if err != nil || len(entries) == 0 {
		t.Fatalf("ReadDir() = %v, %v; want one session file", entries, err)
	}
	content, err := os.ReadFile(filepath.Join(tmp, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if text := string(content); !strings.Contains(text, "before close") || strings.Contains(text, "after close") {
		t.Fatalf("session file = %q", text)
	}
}

func TestLoggerWithAddsFields(t *testing.T) {
	logger := New(false)
	logger.SetTerminalOutputEnabled(false)

	var got []Event
	unsubscribe := logger.Subscribe(func(event Event) { got = append(got, event) })
	defer unsubscribe()

	child := logger.With(Field("feed", "notifications"))
	child.Info("subscribed", Field("channel", "notifications:u1"))
	logger.Info("root")

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Fields["feed"] != "notifications" || got[0].Fields["channel"] != "notifications:u1" {
		t.Fatalf("child fields = %v", got[0].Fields)
	}
	if _, ok := got[1].Fields["feed"]; ok {
		t.Fatalf("parent logger inherited child fields: %v", got[1].Fields)
	}
}

func TestLoggerDebugToggleGatesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(false)
	logger.SetOutput(&buf)

	logger.Debug("hidden")
	logger.SetDebugEnabled(true)
	logger.Debug("shown", Field("token", "abc"))

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("terminal output = %q", out)
	}
	if strings.Contains(out, "abc") {
		t.Fatalf("secret reached terminal output: %q", out)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	logger := New(false)
	logger.SetTerminalOutputEnabled(false)
	calls := 0
	unsubscribe := logger.Subscribe(func(Event) { calls++ })
	logger.Warn("one")
	unsubscribe()
	logger.Warn("two")
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
