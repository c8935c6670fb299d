package view

import (
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"feedsync/internal/config"
	"feedsync/internal/ui/headless/keyboard"
	"feedsync/internal/ui/headless/theme"
)

// settingsField describes one text input on the settings tab.
type settingsField struct {
	label       string
	placeholder string
	secret      bool
	get         func(config.Settings) string
	set         func(*config.Settings, string)
}

var settingsFields = []settingsField{
	{
		label:       "Base URL",
		placeholder: "https://blog.example.com",
		get:         func(s config.Settings) string { return s.BaseURL },
		set:         func(s *config.Settings, v string) { s.BaseURL = v },
	},
	{
		label:       "Token",
		placeholder: "User API token",
		secret:      true,
		get:         func(s config.Settings) string { return s.Token },
		set:         func(s *config.Settings, v string) { s.Token = v },
	},
	{
		label:       "User ID",
		placeholder: "User id for the notifications channel",
		get:         func(s config.Settings) string { return s.UserID },
		set:         func(s *config.Settings, v string) { s.UserID = v },
	},
	{
		label:       "Feeds File",
		placeholder: "feeds.yaml (optional)",
		get:         func(s config.Settings) string { return s.FeedsFile },
		set:         func(s *config.Settings, v string) { s.FeedsFile = v },
	},
}

// feedsFileField is the input the file picker fills.
const feedsFileField = 3

const (
	quitChoiceCancel = iota
	quitChoiceAccept
)

const phaseWrap = 1 << 30

type State struct {
	Tab    int
	Focus  int
	Inputs []textinput.Model
	Keys   keyboard.Map
	Help   help.Model

	Width  int
	Height int
	Phase  int
	Hover  string

	StatusPane viewport.Model
	FeedPane   viewport.Model
	FormPane   viewport.Model

	LogsVisible bool
	FollowLogs  bool
	LogText     string
	LogView     viewport.Model

	AutoConnect bool
	Debug       bool
	Dirty       bool
	Saved       config.Settings
	Draft       config.Settings

	Alert      string
	QuitPrompt bool
	QuitChoice int
	PickerOpen bool
	Picker     filepicker.Model
}

func NewState(opts config.Options) State {
	saved := config.SettingsFromOptions(opts)

	inputs := make([]textinput.Model, len(settingsFields))
	for i, f := range settingsFields {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 2048
		in.Width = 80
		in.Placeholder = f.placeholder
		if f.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		in.SetValue(strings.TrimSpace(f.get(saved)))
		inputs[i] = in
	}

	s := State{
		Tab:         TabOverview,
		Inputs:      inputs,
		Keys:        keyboard.New(),
		Help:        newHelp(),
		StatusPane:  viewport.New(24, 8),
		FeedPane:    viewport.New(24, 8),
		FormPane:    viewport.New(80, 12),
		LogView:     viewport.New(80, 20),
		FollowLogs:  true,
		AutoConnect: opts.AutoConnect,
		Debug:       opts.Debug,
		Saved:       saved,
		Draft:       saved,
		Picker:      newFeedsPicker(),
	}
	s.ApplyFocus()
	return s
}

func newHelp() help.Model {
	h := help.New()
	keyStyle := theme.Fg(theme.ColorBright).Bold(true)
	descStyle := theme.Fg(theme.ColorMuted)
	sepStyle := theme.Fg(theme.ColorFaint)
	h.Styles.ShortKey, h.Styles.FullKey = keyStyle, keyStyle
	h.Styles.ShortDesc, h.Styles.FullDesc = descStyle, descStyle
	h.Styles.ShortSeparator, h.Styles.FullSeparator, h.Styles.Ellipsis = sepStyle, sepStyle, sepStyle
	return h
}

func newFeedsPicker() filepicker.Model {
	p := filepicker.New()
	p.FileAllowed = true
	p.DirAllowed = false
	p.AllowedTypes = []string{".yaml", ".yml"}
	p.ShowHidden = false
	p.ShowSize = false
	p.ShowPermissions = false
	p.KeyMap.Open = key.NewBinding(key.WithKeys(" ", "right", "l"), key.WithHelp("space", "open"))
	p.KeyMap.Select = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	return p
}

func (s State) WithWindowSize(width int, height int) State {
	s.Width = width
	s.Height = height
	return s
}

// WithTick advances the animation phase used by shimmering frames.
func (s State) WithTick() State {
	s.Phase = (s.Phase + 1) % phaseWrap
	return s
}

func (s State) inputValue(i int) string {
	return strings.TrimSpace(s.Inputs[i].Value())
}

// Entered overlays the values currently in the controls on the saved
// settings.
func (s State) Entered() config.Settings {
	return s.overlayControls(s.Saved)
}

func (s State) overlayControls(base config.Settings) config.Settings {
	for i, f := range settingsFields {
		f.set(&base, s.inputValue(i))
	}
	base.AutoConnect = s.AutoConnect
	base.Debug = s.Debug
	return base
}
