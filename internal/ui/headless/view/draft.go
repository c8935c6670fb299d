package view

import (
	"path/filepath"
	"strings"
)

// SyncDraft copies the controls into the draft and recomputes Dirty.
func (s State) SyncDraft() State {
	s.Draft = s.overlayControls(s.Draft)
	s.Dirty = s.Draft != s.Saved
	return s
}

// CommitDraft records the draft as saved.
func (s State) CommitDraft() State {
	s.Saved = s.Draft
	s.Dirty = false
	return s
}

// RevertDraft drops unsaved edits and restores the controls. The debug
// toggle stays as is since the logger already follows it.
func (s State) RevertDraft() State {
	s.Draft = s.Saved
	for i, f := range settingsFields {
		s.Inputs[i].SetValue(strings.TrimSpace(f.get(s.Draft)))
	}
	s.AutoConnect = s.Draft.AutoConnect
	s.Dirty = false
	return s
}

// WithFeedsFile fills the feeds file input from the picker and closes it.
func (s State) WithFeedsFile(path string) State {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s.Inputs[feedsFileField].SetValue(path)
	s.PickerOpen = false
	return s.SyncDraft()
}
