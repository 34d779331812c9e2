package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIBaseURL     = "http://localhost:8000"
	DefaultRequestTimeout = 30 * time.Second

	EnvAPIBaseURL     = "AURORA_API_BASE_URL"
	EnvDataDir        = "AURORA_DATA_DIR"
	EnvRequestTimeout = "AURORA_REQUEST_TIMEOUT"
)

// Config holds the client settings
type Config struct {
	APIBaseURL         string        `yaml:"api_base_url"`
	DataDir            string        `yaml:"data_dir"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ArchiveTranscripts bool          `yaml:"archive_transcripts"`
}

// Default returns the built-in configuration
func Default() Config {
	dataDir := ".aurora"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".aurora")
	}
	return Config{
		APIBaseURL:         DefaultAPIBaseURL,
		DataDir:            dataDir,
		RequestTimeout:     DefaultRequestTimeout,
		ArchiveTranscripts: true,
	}
}

// DefaultPath returns ~/.config/aurora/config.yaml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "aurora", "config.yaml"), nil
}

// Load reads the config file at path (a missing file is not an error),
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRequestTimeout, v, err)
		}
		c.RequestTimeout = d
	}
	return nil
}

func (c *Config) normalize() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if strings.HasPrefix(c.DataDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, c.DataDir[2:])
		}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks the fields that have no usable fallback
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api_base_url must not be empty")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("api_base_url %q must start with http:// or https://", c.APIBaseURL)
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	return nil
}

// CredentialsPath is the SQLite file holding the token pair
func (c Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.db")
}

// TranscriptDir holds archived chat transcripts
func (c Config) TranscriptDir() string {
	return filepath.Join(c.DataDir, "transcripts")
}

// Save writes the config as YAML, creating parent directories
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
