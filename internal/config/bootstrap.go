package config

import (
	"errors"
	"os"
	"path/filepath"
)

const SettingsFileName = "settings.yml"

// EnsureUserSettings returns the settings path inside dataDir, writing the
// defaults there on first start. An existing settings.toml takes precedence.
func EnsureUserSettings(dataDir string) (string, error) {
	if p := filepath.Join(dataDir, "settings.toml"); fileExists(p) {
		return p, nil
	}
	userPath := filepath.Join(dataDir, SettingsFileName)

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := SaveAtomic(userPath, Default()); err != nil {
		return "", err
	}
	return userPath, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
