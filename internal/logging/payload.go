package logging

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// payloadClipLimit bounds how much of a response body or realtime frame is
// kept in one log field.
const payloadClipLimit = 8 * 1024

// FormatPayload renders a raw HTTP body or transport frame for logging.
// JSON is pretty-printed (a JSON-encoded string is unwrapped first) and
// anything past payloadClipLimit bytes is cut.
func FormatPayload(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "<empty>"
	}
	var quoted string
	if err := json.Unmarshal([]byte(trimmed), &quoted); err == nil {
		trimmed = strings.TrimSpace(quoted)
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		if pretty, encErr := marshalPrettyJSON(value); encErr == nil {
			trimmed = pretty
		}
	}
	return clip(trimmed)
}

func clip(s string) string {
	if len(s) <= payloadClipLimit {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes clipped)", s[:payloadClipLimit], len(s)-payloadClipLimit)
}

func marshalPrettyJSON(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// prettyJSONString reports whether value is structured data, or text that
// is entirely a JSON object or array, and returns it indented. Text with a
// JSON suffix stays inline.
func prettyJSONString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case error:
		return prettyJSONString(v.Error())
	case json.RawMessage:
		return prettyJSONString(string(v))
	case []byte:
		return prettyJSONString(string(v))
	case string:
		trimmed := strings.TrimSpace(v)
		if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
			return "", false
		}
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return "", false
		}
		out, err := marshalPrettyJSON(decoded)
		return clip(out), err == nil
	case encoding.TextMarshaler:
		text, err := v.MarshalText()
		if err != nil {
			return "", false
		}
		return prettyJSONString(string(text))
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if _, isStringer := value.(fmt.Stringer); isStringer {
			return "", false
		}
		out, err := marshalPrettyJSON(rv.Interface())
		return clip(out), err == nil
	default:
		return "", false
	}
}
