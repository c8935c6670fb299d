package logging

import (
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

// leadingKeys are printed before any other inline field so lines for the
// same feed and event line up when scanning the log pane.
var leadingKeys = []string{"feed", "channel", "op", "id", "state", "status", "attempt"}

// isSecretKey matches field names whose values must never reach a sink.
func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	switch {
	case k == "token", k == "authorization", k == "apikey", k == "api_key":
		return true
	case strings.HasSuffix(k, "_token"), strings.HasSuffix(k, "_secret"), strings.HasSuffix(k, "password"):
		return true
	default:
		return false
	}
}

func resolveAttr(attr slog.Attr) (string, any) {
	if attr.Key == "" {
		return "", nil
	}
	if isSecretKey(attr.Key) {
		return attr.Key, redacted
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return attr.Key, value.Any()
	}
	inner := make(map[string]any, len(value.Group()))
	for _, groupAttr := range value.Group() {
		if key, val := resolveAttr(groupAttr); key != "" {
			inner[key] = val
		}
	}
	return attr.Key, inner
}

// attrsToMap flattens attrs into event fields. Later keys win.
func attrsToMap(attrs []slog.Attr) map[string]any {
	var values map[string]any
	for _, attr := range attrs {
		key, value := resolveAttr(attr)
		if key == "" {
			continue
		}
		if values == nil {
			values = make(map[string]any, len(attrs))
		}
		values[key] = value
	}
	return values
}
