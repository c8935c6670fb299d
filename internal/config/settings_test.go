package config

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestSettingsSaveLoadAndPath(t *testing.T) {
	root := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("AppData", root)
	} else {
		t.Setenv("XDG_CONFIG_HOME", root)
	}

	path, err := SettingsPath()
	if err != nil {
		t.Fatalf("SettingsPath() error = %v", err)
	}
	wantPath := filepath.Join(root, "feedsync", "settings.json")
	if path != wantPath {
		t.Fatalf("SettingsPath() = %q, want %q", path, wantPath)
	}

	in := Settings{
		BaseURL:     "https://blog.example.com",
		Token:       "tok",
		UserID:      "u1",
		Transport:   TransportWebsocket,
		RealtimeURL: "wss://rt.example.com/socket",
		AutoConnect: true,
		Debug:       true,
	}
	if err := SaveSettings(in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	out, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if out != in {
		t.Fatalf("loaded settings = %#v, want %#v", out, in)
	}
}

func TestMergeOptionsWithSettings_PrefersCLI(t *testing.T) {
	merged := MergeOptionsWithSettings(
		Options{
			BaseURL:   "https://cli.example.com",
			Transport: TransportSSE,
		},
		Settings{
			BaseURL:     "https://saved.example.com",
			Token:       "saved-token",
			UserID:      "u9",
			Transport:   TransportWebsocket,
			RealtimeURL: "wss://saved.example.com/socket",
			AutoConnect: true,
			Debug:       true,
		},
	)

	if merged.BaseURL != "https://cli.example.com" {
		t.Fatalf("BaseURL = %q", merged.BaseURL)
	}
	if merged.Token != "saved-token" || merged.UserID != "u9" {
		t.Fatalf("Token/UserID = %q/%q", merged.Token, merged.UserID)
	}
	if merged.Transport != TransportWebsocket || merged.RealtimeURL != "wss://saved.example.com/socket" {
		t.Fatalf("transport = %q %q", merged.Transport, merged.RealtimeURL)
	}
	if !merged.AutoConnect || !merged.Debug {
		t.Fatalf("bool flags should merge from saved when CLI false: %#v", merged)
	}
}
