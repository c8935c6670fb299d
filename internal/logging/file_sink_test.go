package logging

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultLogDirPathSuffix(t *testing.T) {
	path, err := DefaultLogDirPath()
	if err != nil {
		t.Fatalf("DefaultLogDirPath() error = %v", err)
	}
	if got, want := path, filepath.Join("feedsync", "logs"); !strings.HasSuffix(got, want) {
		t.Fatalf("DefaultLogDirPath() = %q, want suffix %q", got, want)
	}
}

// openTestSink starts a session in dir without pruning or touching the user
// cache directory.
func openTestSink(t *testing.T, dir, tag string, maxBytes int64) *fileSink {
	t.Helper()
	sink := &fileSink{dir: dir, sessionTag: tag, maxBytes: maxBytes}
	if err := sink.rotateLocked(); err != nil {
		t.Fatalf("rotateLocked() error = %v", err)
	}
	return sink
}

// sessionLines decodes every JSONL line in dir, keyed by file name.
func sessionLines(t *testing.T, dir string) map[string][]jsonLogLine {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*"+logFileSuffix))
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	out := make(map[string][]jsonLogLine, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%q) error = %v", path, err)
		}
		var lines []jsonLogLine
		for raw := range strings.Lines(string(data)) {
			var line jsonLogLine
			if err := json.Unmarshal([]byte(raw), &line); err != nil {
				t.Fatalf("line %q in %s: %v", raw, filepath.Base(path), err)
			}
			lines = append(lines, line)
		}
		out[filepath.Base(path)] = lines
	}
	return out
}

func TestFileSinkRollsOverAtMaxBytes(t *testing.T) {
	dir := t.TempDir()
	sink := openTestSink(t, dir, "20260221-120000", 180)

	event := Event{
		Time:    time.Unix(1700000000, 123456789),
		Level:   slog.LevelDebug,
		Message: "delivery dropped",
		Fields:  map[string]any{"feed": "activities", "op": "delete"},
	}
	const writes = 6
	for range writes {
		if err := sink.WriteEvent(event); err != nil {
			t.Fatalf("WriteEvent() error = %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.WriteEvent(event); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("WriteEvent() after Close error = %v, want os.ErrClosed", err)
	}

	files := sessionLines(t, dir)
	if len(files) < 2 {
		t.Fatalf("session files = %d, want a rollover", len(files))
	}
	total := 0
	for name, lines := range files {
		if !strings.Contains(name, "20260221-120000") {
			t.Fatalf("file %q is not tagged with the session", name)
		}
		for _, line := range lines {
			if line.Message != "delivery dropped" || line.Fields["feed"] != "activities" {
				t.Fatalf("line = %+v", line)
			}
		}
		total += len(lines)
	}
	if total != writes {
		t.Fatalf("lines = %d, want %d", total, writes)
	}
}

func TestPruneSessionsKeepsNewest(t *testing.T) {
	tmp := t.TempDir()
	for _, name := range []string{
		"feedsync-20260101-000000-001.jsonl",
		"feedsync-20260101-000000-002.jsonl",
		"feedsync-20260102-000000-001.jsonl",
		"feedsync-20260103-000000-001.jsonl",
		"feedsync-20260104-000000-001.jsonl",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(tmp, name), []byte("{}\n"), 0o600); err != nil {
			t.Fatalf("WriteFile(%q) error = %v", name, err)
		}
	}

	if err := pruneSessions(tmp, "20260104-000000", 2); err != nil {
		t.Fatalf("pruneSessions() error = %v", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var got []string
	for _, entry := range entries {
		got = append(got, entry.Name())
	}
	want := "feedsync-20260103-000000-001.jsonl,feedsync-20260104-000000-001.jsonl,notes.txt"
	if strings.Join(got, ",") != want {
		t.Fatalf("remaining = %v, want %s", got, want)
	}
}

func TestEncodeLogLineStringifiesValues(t *testing.T) {
	line, err := encodeLogLine(Event{
		Time:    time.Unix(0, 0),
		Level:   slog.LevelInfo,
		Message: "retry scheduled",
		Fields:  map[string]any{"delay": 2 * time.Second, "error": os.ErrClosed},
	})
	if err != nil {
		t.Fatalf("encodeLogLine() error = %v", err)
	}
	var decoded jsonLogLine
	if err := json.Unmarshal(line, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Fields["delay"] != "2s" || decoded.Fields["error"] != os.ErrClosed.Error() {
		t.Fatalf("fields = %v", decoded.Fields)
	}
}
