package logging

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// compactJSONLimit is the widest JSON value still printed inline.
const compactJSONLimit = 72

type ansiPalette struct {
	time     lipgloss.Style
	message  lipgloss.Style
	key      lipgloss.Style
	value    lipgloss.Style
	punct    lipgloss.Style
	jsonKey  lipgloss.Style
	jsonStr  lipgloss.Style
	jsonLit  lipgloss.Style
	blockBox lipgloss.Style
	badges   map[slog.Level]lipgloss.Style
}

var (
	paletteOnce sync.Once
	palette     ansiPalette
)

func ansiTheme() *ansiPalette {
	paletteOnce.Do(func() {
		lipgloss.SetColorProfile(termenv.TrueColor)
		fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
		badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		palette = ansiPalette{
			time:    fg("240"),
			message: fg("252").Bold(true),
			key:     fg("117"),
			value:   fg("255"),
			punct:   fg("238"),
			jsonKey: fg("117"),
			jsonStr: fg("186"),
			jsonLit: fg("141"),
			blockBox: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("245")).
				Padding(0, 1),
			badges: map[slog.Level]lipgloss.Style{
				slog.LevelDebug: badge.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("240")),
				slog.LevelInfo:  badge.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("31")),
				slog.LevelWarn:  badge.Foreground(lipgloss.Color("234")).Background(lipgloss.Color("214")),
				slog.LevelError: badge.Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")),
			},
		}
	})
	return &palette
}

// bucketLevel snaps arbitrary slog levels onto the four named ones.
func bucketLevel(level slog.Level) slog.Level {
	switch {
	case level <= slog.LevelDebug:
		return slog.LevelDebug
	case level <= slog.LevelInfo:
		return slog.LevelInfo
	case level <= slog.LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// FormatEventANSI renders one event for a color terminal or the dashboard log
// pane. Short JSON values stay inline; larger ones follow as boxed blocks.
func FormatEventANSI(event Event) string {
	p := ansiTheme()
	level := bucketLevel(event.Level)

	var b strings.Builder
	b.WriteString(p.time.Render(event.Time.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(p.badges[level].Render(level.String()))
	b.WriteByte(' ')
	b.WriteString(p.message.Render(event.Message))

	var blocks []string
	for i, key := range orderedFieldKeys(event.Level, event.Fields) {
		value := event.Fields[key]
		sep := " "
		if i == 0 {
			sep = "  "
		}
		if pretty, ok := prettyJSONString(value); ok {
			if compact := compactJSON(pretty); len(compact) <= compactJSONLimit {
				b.WriteString(sep + p.field(key, p.colorJSON(compact)))
				continue
			}
			blocks = append(blocks, p.field(key, "")+"\n"+p.blockBox.Render(p.colorJSON(pretty)))
			continue
		}
		b.WriteString(sep + p.field(key, p.value.Render(formatFieldValue(value))))
	}
	for _, block := range blocks {
		b.WriteString("\n  ")
		b.WriteString(block)
	}
	b.WriteByte('\n')
	return b.String()
}

func (p *ansiPalette) field(key, rendered string) string {
	return p.key.Render(key) + p.punct.Render("=") + rendered
}

// compactJSON folds pretty-printed JSON back onto one line.
func compactJSON(pretty string) string {
	lines := strings.Split(pretty, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
		if strings.HasSuffix(lines[i], ":") {
			lines[i] += " "
		}
	}
	out := strings.Join(lines, "")
	return strings.ReplaceAll(out, ",\"", ", \"")
}

// colorJSON styles JSON text token by token. A string followed by a colon is
// an object key.
func (p *ansiPalette) colorJSON(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '"':
			end := scanJSONString(text, i)
			tok := text[i:end]
			rest := strings.TrimLeft(text[end:], " ")
			if strings.HasPrefix(rest, ":") {
				b.WriteString(p.jsonKey.Render(tok))
			} else {
				b.WriteString(p.jsonStr.Render(tok))
			}
			i = end
		case strings.IndexByte("{}[]:,", c) >= 0:
			b.WriteString(p.punct.Render(string(c)))
			i++
		case c == ' ' || c == '\t' || c == '\n':
			b.WriteByte(c)
			i++
		default:
			end := i
			for end < len(text) && strings.IndexByte("{}[]:, \t\n", text[end]) < 0 {
				end++
			}
			b.WriteString(p.jsonLit.Render(text[i:end]))
			i = end
		}
	}
	return b.String()
}

// scanJSONString returns the index just past the string starting at start.
func scanJSONString(text string, start int) int {
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(text)
}
