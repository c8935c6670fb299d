package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Settings is the subset of Options persisted between runs.
type Settings struct {
	BaseURL     string `json:"base_url"`
	Token       string `json:"token"`
	UserID      string `json:"user_id,omitempty"`
	Transport   string `json:"transport,omitempty"`
	RealtimeURL string `json:"realtime_url,omitempty"`
	StoreDSN    string `json:"store_dsn,omitempty"`
	FeedsFile   string `json:"feeds_file,omitempty"`
	AutoConnect bool   `json:"auto_connect"`
	Debug       bool   `json:"debug"`
}

func SettingsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "feedsync", "settings.json"), nil
}

func LoadSettings() (Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return Settings{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func SaveSettings(settings Settings) error {
	path, err := SettingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// MergeOptionsWithSettings fills options left unset on the command line from
// saved settings.
func MergeOptionsWithSettings(cli Options, saved Settings) Options {
	fill := func(dst *string, value string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = value
		}
	}
	fill(&cli.BaseURL, saved.BaseURL)
	fill(&cli.Token, saved.Token)
	fill(&cli.UserID, saved.UserID)
	fill(&cli.RealtimeURL, saved.RealtimeURL)
	fill(&cli.StoreDSN, saved.StoreDSN)
	fill(&cli.FeedsFile, saved.FeedsFile)
	if (cli.Transport == "" || cli.Transport == TransportSSE) && saved.Transport != "" {
		cli.Transport = saved.Transport
	}
	if !cli.AutoConnect {
		cli.AutoConnect = saved.AutoConnect
	}
	if !cli.Debug {
		cli.Debug = saved.Debug
	}
	return cli
}

func SettingsFromOptions(opts Options) Settings {
	return Settings{
		BaseURL:     strings.TrimSpace(opts.BaseURL),
		Token:       strings.TrimSpace(opts.Token),
		UserID:      strings.TrimSpace(opts.UserID),
		Transport:   opts.Transport,
		RealtimeURL: strings.TrimSpace(opts.RealtimeURL),
		StoreDSN:    strings.TrimSpace(opts.StoreDSN),
		FeedsFile:   strings.TrimSpace(opts.FeedsFile),
		AutoConnect: opts.AutoConnect,
		Debug:       opts.Debug,
	}
}
