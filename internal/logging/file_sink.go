package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogFileMaxBytes = 5 * 1024 * 1024
	// keepSessions is how many past runs keep their log files.
	keepSessions  = 10
	logFilePrefix = "feedsync-"
	logFileSuffix = ".jsonl"
)

// fileSink appends events as JSON lines under dir. Each run gets its own
// session tag; a file rolls over to the next part once it reaches maxBytes.
type fileSink struct {
	mu         sync.Mutex
	dir        string
	sessionTag string
	maxBytes   int64
	part       int
	file       *os.File
	size       int64
	closed     bool
}

type jsonLogLine struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func DefaultLogDirPath() (string, error) {
	root, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "feedsync", "logs"), nil
}

func newFileSink(maxBytes int64) (*fileSink, error) {
	if maxBytes <= 0 {
		maxBytes = defaultLogFileMaxBytes
	}
	dir, err := DefaultLogDirPath()
	if err != nil {
		return nil, err
	}
	sink := &fileSink{
		dir:        dir,
		sessionTag: time.Now().UTC().Format("20060102-150405"),
		maxBytes:   maxBytes,
	}
	if err := sink.rotateLocked(); err != nil {
		return nil, err
	}
	if err := pruneSessions(dir, sink.sessionTag, keepSessions); err != nil {
		return nil, fmt.Errorf("prune old logs: %w", err)
	}
	return sink, nil
}

func (s *fileSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeFileLocked()
}

func (s *fileSink) closeFileLocked() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.size = 0
	return err
}

func (s *fileSink) WriteEvent(event Event) error {
	if s == nil {
		return nil
	}
	line, err := encodeLogLine(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	full := s.size > 0 && s.size+int64(len(line)) > s.maxBytes
	if s.file == nil || full {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}
	n, err := s.file.Write(line)
	s.size += int64(n)
	return err
}

func encodeLogLine(event Event) ([]byte, error) {
	entry := jsonLogLine{
		Time:    event.Time.UTC().Format(time.RFC3339Nano),
		Level:   strings.ToUpper(event.Level.String()),
		Message: event.Message,
	}
	if len(event.Fields) > 0 {
		entry.Fields = make(map[string]any, len(event.Fields))
		for key, value := range event.Fields {
			entry.Fields[key] = jsonSafe(value)
		}
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return append(payload, '\n'), nil
}

// jsonSafe turns values json.Marshal would drop or reject into strings.
func jsonSafe(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case slog.Level:
		return v.String()
	case error:
		return v.Error()
	case time.Duration:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return value
	}
}

func (s *fileSink) rotateLocked() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	_ = s.closeFileLocked()
	s.part++
	name := fmt.Sprintf("%s%s-%03d%s", logFilePrefix, s.sessionTag, s.part, logFileSuffix)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// pruneSessions removes log files of all but the newest keep sessions.
// current is never removed.
func pruneSessions(dir string, current string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	bySession := map[string][]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		tag := strings.TrimPrefix(name, logFilePrefix)
		if i := strings.LastIndex(tag, "-"); i > 0 {
			tag = tag[:i]
		}
		bySession[tag] = append(bySession[tag], name)
	}
	tags := make([]string, 0, len(bySession))
	for tag := range bySession {
		if tag != current {
			tags = append(tags, tag)
		}
	}
	if len(tags) < keep {
		return nil
	}
	// Tags are UTC timestamps, so lexical order is age order.
	sort.Strings(tags)
	var errs []error
	for _, tag := range tags[:len(tags)-keep+1] {
		for _, name := range bySession[tag] {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
