package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by NewConfig and Normalize.
const (
	DefaultPacingDelay   = "2s"
	DefaultTimeout       = "60s"
	DefaultImagingMarker = "DICOM/"
	DefaultRegion        = "us-east-1"

	DefaultIdentityURL = "https://iam-service.eu-west.philips-healthsuite.com"
	DefaultClientID    = "public-client"
	DefaultDataLakeURL = "https://research-cdl-prod-datalake.eu-west.philips-healthsuite.com/store/cdl/"
)

// Config represents the main configuration for cdlsync.
type Config struct {
	OutputDir string         `toml:"output_dir"`
	LogDir    string         `toml:"log_dir"`
	Identity  IdentityConfig `toml:"identity"`
	DataLake  DataLakeConfig `toml:"data_lake"`
	Storage   StorageConfig  `toml:"storage"`
	Database  DatabaseConfig `toml:"database"`
	Sync      SyncConfig     `toml:"sync"`
}

// IdentityConfig holds the identity provider account used for the password grant.
// An empty password is prompted for interactively.
type IdentityConfig struct {
	URL          string `toml:"url"`
	Username     string `toml:"username"`
	Password     string `toml:"password,omitempty"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DataLakeConfig selects the data lake API and the study to sync.
type DataLakeConfig struct {
	URL            string `toml:"url"`
	OrganizationID string `toml:"organization_id"`
	StudyID        string `toml:"study_id"`
	Timeout        string `toml:"timeout"` // Go duration, per request
}

// StorageConfig represents configuration for the object store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "s3" or "memory"

	// S3-specific fields (only used when Type == "s3")
	Region       string `toml:"region,omitempty"`
	Endpoint     string `toml:"endpoint,omitempty"`
	UsePathStyle bool   `toml:"use_path_style,omitempty"`
}

// DatabaseConfig represents configuration for the run history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// SyncConfig tunes the sync phases.
type SyncConfig struct {
	PacingDelay   string `toml:"pacing_delay"` // Go duration between patients
	ImagingMarker string `toml:"imaging_marker"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		OutputDir: filepath.Join(baseDir, "output"),
		LogDir:    filepath.Join(baseDir, "log"),
		Identity: IdentityConfig{
			URL:      DefaultIdentityURL,
			ClientID: DefaultClientID,
		},
		DataLake: DataLakeConfig{
			URL:     DefaultDataLakeURL,
			Timeout: DefaultTimeout,
		},
		Storage: StorageConfig{
			Type:   "s3",
			Region: DefaultRegion,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Sync: SyncConfig{
			PacingDelay:   DefaultPacingDelay,
			ImagingMarker: DefaultImagingMarker,
		},
	}
}

// PacingDelay parses Sync.PacingDelay. Empty means the default.
func (c *Config) PacingDelay() (time.Duration, error) {
	return parseDuration("sync.pacing_delay", c.Sync.PacingDelay, DefaultPacingDelay)
}

// Timeout parses DataLake.Timeout. Empty means the default.
func (c *Config) Timeout() (time.Duration, error) {
	return parseDuration("data_lake.timeout", c.DataLake.Timeout, DefaultTimeout)
}

func parseDuration(key, value, def string) (time.Duration, error) {
	if value == "" {
		value = def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, value)
	}
	return d, nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Identity.Password != "" {
		out.Identity.Password = "********"
	}
	if out.Identity.ClientSecret != "" {
		out.Identity.ClientSecret = "********"
	}
	return &out
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// The file may hold secrets, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
