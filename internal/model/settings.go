package model

import (
	"roast-tracker/internal/errs"
	"roast-tracker/internal/roast"
)

// Settings are the local application settings.
type Settings struct {
	Language          string      `json:"language"`
	Theme             string      `json:"theme"`
	AutoSave          bool        `json:"autoSave"`
	Notifications     bool        `json:"notifications"`
	DefaultRoastLevel roast.Label `json:"defaultRoastLevel"`
}

// DefaultSettings returns the first-run settings.
func DefaultSettings() Settings {
	return Settings{
		Language:          "zh",
		Theme:             "light",
		AutoSave:          true,
		Notifications:     true,
		DefaultRoastLevel: roast.Medium,
	}
}

// Validate checks the enumerated fields.
func (s Settings) Validate() error {
	if s.Language != "zh" && s.Language != "en" {
		return errs.Validation("language", "must be zh or en, got %q", s.Language)
	}
	if s.Theme != "light" && s.Theme != "dark" {
		return errs.Validation("theme", "must be light or dark, got %q", s.Theme)
	}
	if !s.DefaultRoastLevel.Valid() {
		return errs.Validation("defaultRoastLevel", "unknown roast level %q", s.DefaultRoastLevel)
	}
	return nil
}

// SettingsPatch is a partial settings update.
type SettingsPatch struct {
	Language          *string      `json:"language,omitempty"`
	Theme             *string      `json:"theme,omitempty"`
	AutoSave          *bool        `json:"autoSave,omitempty"`
	Notifications     *bool        `json:"notifications,omitempty"`
	DefaultRoastLevel *roast.Label `json:"defaultRoastLevel,omitempty"`
}

// Patch returns a patch that sets every field to the value in s.
func (s Settings) Patch() SettingsPatch {
	return SettingsPatch{
		Language:          &s.Language,
		Theme:             &s.Theme,
		AutoSave:          &s.AutoSave,
		Notifications:     &s.Notifications,
		DefaultRoastLevel: &s.DefaultRoastLevel,
	}
}

// Apply merges p into s.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.AutoSave != nil {
		s.AutoSave = *p.AutoSave
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.DefaultRoastLevel != nil {
		s.DefaultRoastLevel = *p.DefaultRoastLevel
	}
	return s
}
