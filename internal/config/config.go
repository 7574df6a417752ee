package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for hindsight.
type Config struct {
	DeviceID string        `toml:"device_id"`
	BaseDir  string        `toml:"base_dir"`
	LogDir   string        `toml:"log_dir"`
	Capture  CaptureConfig `toml:"capture"`
	Server   ServerConfig  `toml:"server"`
}

// CaptureConfig holds capture-loop settings.
type CaptureConfig struct {
	IntervalMS           int  `toml:"interval_ms"`
	RecordWhenActive     bool `toml:"record_when_active"`
	LocationTracking     bool `toml:"location_tracking"`
	ScreenshotsPerUpload int  `toml:"screenshots_per_upload"`

	Source   SourceConfig   `toml:"source"`
	Location LocationConfig `toml:"location"`
}

// SourceConfig selects the frame source backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SourceConfig struct {
	Type string `toml:"type"` // "synthetic" or "screen"

	// Synthetic-specific fields (only used when Type == "synthetic")
	Width  int `toml:"width,omitempty"`
	Height int `toml:"height,omitempty"`
}

// LocationConfig selects the location provider.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LocationConfig struct {
	Type string `toml:"type"` // "none" or "static"

	// Static-specific fields (only used when Type == "static")
	Latitude  float64 `toml:"latitude,omitempty"`
	Longitude float64 `toml:"longitude,omitempty"`
}

// ServerConfig holds the sync endpoint pair and transfer tuning.
type ServerConfig struct {
	PrimaryURL  string `toml:"primary_url"`
	FallbackURL string `toml:"fallback_url"`
	APIKey      string `toml:"api_key"`

	// The primary is expected on the same LAN, so its connect timeout is
	// tuned low; the fallback may be far away and gets a longer one.
	PrimaryConnectTimeoutMS  int `toml:"primary_connect_timeout_ms"`
	FallbackConnectTimeoutMS int `toml:"fallback_connect_timeout_ms"`

	// Inter-file delay during screenshot upload. Pacing, not rate limiting:
	// the primary is typically a low-power machine.
	UploadPacingMS int `toml:"upload_pacing_ms"`

	// KeepSynced moves uploaded screenshots to a synced directory instead of
	// deleting them.
	KeepSynced bool `toml:"keep_synced"`
}

// NewConfig creates a Config with the provided identity and default settings.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Capture: CaptureConfig{
			IntervalMS:           2000,
			RecordWhenActive:     true,
			ScreenshotsPerUpload: 50,
			Source:               SourceConfig{Type: "synthetic", Width: 64, Height: 64},
			Location:             LocationConfig{Type: "none"},
		},
		Server: ServerConfig{
			PrimaryConnectTimeoutMS:  1000,
			FallbackConnectTimeoutMS: 10000,
			UploadPacingMS:           300,
		},
	}
}

// Validate checks the parts of the configuration that have no workable
// zero value.
func Validate(cfg *Config) error {
	if cfg.DeviceID == "" {
		return fmt.Errorf("device_id is required (run config init)")
	}
	if cfg.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if cfg.Capture.IntervalMS <= 0 {
		return fmt.Errorf("capture.interval_ms must be positive, got %d", cfg.Capture.IntervalMS)
	}
	if cfg.Capture.ScreenshotsPerUpload < 0 {
		return fmt.Errorf("capture.screenshots_per_upload must not be negative")
	}
	switch cfg.Capture.Source.Type {
	case "synthetic", "screen":
	default:
		return fmt.Errorf("capture.source.type must be 'synthetic' or 'screen', got %q", cfg.Capture.Source.Type)
	}
	switch cfg.Capture.Location.Type {
	case "", "none", "static":
	default:
		return fmt.Errorf("capture.location.type must be 'none' or 'static', got %q", cfg.Capture.Location.Type)
	}
	return nil
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
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
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

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Save overwrites the config file at the specified path.
func Save(path string, cfg *Config) error {
	return writeToFile(path, cfg)
}
