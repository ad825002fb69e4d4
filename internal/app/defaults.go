package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate cdlsync's files.
const (
	EnvConfigPath = "CDLSYNC_CONFIG_PATH"
	EnvHome       = "CDLSYNC_HOME"
)

// Defaults are the paths used when the config does not say otherwise.
// Synced study data lands in OutputDir: the patient roster, the cached
// credentials and one directory per medical record number.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	OutputDir  string
}

// GetDefaults resolves the default paths. CDLSYNC_CONFIG_PATH overrides
// ~/.config/cdlsync.toml and CDLSYNC_HOME overrides ~/.local/share/cdlsync.
func GetDefaults() (*Defaults, error) {
	configPath, err := fromEnvOrHome(EnvConfigPath, ".config", "cdlsync.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome(EnvHome, ".local", "share", "cdlsync")
	if err != nil {
		return nil, err
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		OutputDir:  filepath.Join(baseDir, "output"),
	}, nil
}

func fromEnvOrHome(env string, rel ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for %s: %w", env, err)
	}
	return filepath.Join(append([]string{homeDir}, rel...)...), nil
}
