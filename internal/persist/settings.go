package persist

import (
	"encoding/json"
	"io"
	"time"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
)

// SettingsVersion tags exported settings files.
const SettingsVersion = "1.0.0"

// SettingsExport is the layout of an exported settings file.
type SettingsExport struct {
	Settings   model.Settings `json:"settings"`
	ExportDate time.Time      `json:"exportDate"`
	Version    string         `json:"version"`
}

// ExportSettings writes s as an indented settings file stamped with now.
func ExportSettings(w io.Writer, s model.Settings, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(SettingsExport{Settings: s, ExportDate: now.UTC(), Version: SettingsVersion})
}

// ImportSettings reads a settings file. Only the keys present under
// "settings" are returned; the caller validates the merged result.
func ImportSettings(r io.Reader) (model.SettingsPatch, error) {
	var file struct {
		Settings *model.SettingsPatch `json:"settings"`
	}
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return model.SettingsPatch{}, errs.Validation("settings file", "cannot parse: %v", err)
	}
	if file.Settings == nil {
		return model.SettingsPatch{}, errs.Validation("settings file", "no settings object")
	}
	return *file.Settings, nil
}
