package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"shieldline/internal/logger"
	"shieldline/internal/model"
)

// Files is the on-disk location of the profile list and the settings record.
type Files struct {
	ProfilesPath string
	SettingsPath string
}

// LoadProfiles returns the persisted profiles. A missing or unreadable file
// yields an empty list.
func (f Files) LoadProfiles() []model.Profile {
	var profiles []model.Profile
	if !readJSON(f.ProfilesPath, &profiles) {
		return []model.Profile{}
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	return profiles
}

func (f Files) SaveProfiles(profiles []model.Profile) error {
	if profiles == nil {
		profiles = []model.Profile{}
	}
	return writeJSON(f.ProfilesPath, profiles)
}

// LoadSettings returns the persisted settings, falling back to the defaults
// when the file is missing or corrupt.
func (f Files) LoadSettings() model.Settings {
	settings := model.DefaultSettings()
	if !readJSON(f.SettingsPath, &settings) {
		return model.DefaultSettings()
	}
	return settings
}

func (f Files) SaveSettings(s model.Settings) error {
	return writeJSON(f.SettingsPath, s)
}

func readJSON(path string, v interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Log.Warnf("Could not read %s: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Log.Warnf("Ignoring corrupt %s: %v", path, err)
		return false
	}
	return true
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
