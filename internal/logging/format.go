package logging

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
)

// FormatEventLine renders event as a single plain text line for terminals
// without color.
func FormatEventLine(event Event) string {
	var b strings.Builder
	b.WriteString(event.Time.Format("15:04:05"))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(event.Level.String()))
	b.WriteString("] ")
	b.WriteString(event.Message)
	for _, key := range orderedFieldKeys(event.Level, event.Fields) {
		fmt.Fprintf(&b, " %s=%s", key, formatFieldValue(event.Fields[key]))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatFieldValue(value any) string {
	if value == nil {
		return "<nil>"
	}
	if pretty, ok := prettyJSONString(value); ok {
		return pretty
	}
	if s, ok := value.(string); ok {
		if strings.ContainsAny(s, " \t\n") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return fmt.Sprintf("%v", value)
}

// orderedFieldKeys puts correlation keys first, then the remaining inline
// fields alphabetically, then JSON blocks with payload-like keys last.
func orderedFieldKeys(_ slog.Level, fields map[string]any) []string {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := fieldRank(keys[i], fields[keys[i]]), fieldRank(keys[j], fields[keys[j]])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func fieldRank(key string, value any) int {
	if i := slices.Index(leadingKeys, key); i >= 0 {
		return i
	}
	base := len(leadingKeys)
	if _, ok := prettyJSONString(value); !ok {
		return base
	}
	if isPayloadFieldKey(key) {
		return base + 2
	}
	return base + 1
}

func isPayloadFieldKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "payload", "response", "response_body", "body", "data", "record", "old_record", "frame":
		return true
	default:
		return false
	}
}
