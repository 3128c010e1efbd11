// Package config handles loading and managing scanpost configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for scanpost.
type Config struct {
	GitHub  GitHubConfig  `yaml:"github"`
	Logging LoggingConfig `yaml:"logging"`
	Archive ArchiveConfig `yaml:"archive"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

// GitHubConfig controls how the GitHub API is reached.
type GitHubConfig struct {
	APIURL   string `yaml:"api_url"`
	TokenEnv string `yaml:"token_env"` // name of the env var holding the token
	Timeout  int    `yaml:"timeout"`   // seconds
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ArchiveConfig selects where posted comment records are kept.
type ArchiveConfig struct {
	Backend  string `yaml:"backend"` // none, local, s3, gcs
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// LedgerConfig controls the Postgres publication ledger.
type LedgerConfig struct {
	DatabaseURL string `yaml:"database_url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// Archive backends.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL:   "https://api.github.com/",
			TokenEnv: "GITHUB_TOKEN",
			Timeout:  30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Archive: ArchiveConfig{
			Backend: BackendNone,
		},
		Ledger: LedgerConfig{
			AutoMigrate: true,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides config values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("GITHUB_API_URL"); v != "" {
		c.GitHub.APIURL = v
	}
	if v := getenv("SCANPOST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("SCANPOST_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := getenv("SCANPOST_ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := getenv("SCANPOST_ARCHIVE_BUCKET"); v != "" {
		c.Archive.Bucket = v
	}
	if v := getenv("SCANPOST_DATABASE_URL"); v != "" {
		c.Ledger.DatabaseURL = v
	}
}

// Token returns the GitHub token from the configured environment variable.
func (c *Config) Token(getenv func(string) string) string {
	name := c.GitHub.TokenEnv
	if name == "" {
		name = "GITHUB_TOKEN"
	}
	return getenv(name)
}

// Validate checks enumerated fields and backend requirements.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	switch c.Archive.Backend {
	case "", BackendNone, BackendLocal:
	case BackendS3, BackendGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for backend %q", c.Archive.Backend)
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, local, s3, gcs, got %q", c.Archive.Backend)
	}

	if c.GitHub.Timeout < 0 {
		return fmt.Errorf("github.timeout must not be negative")
	}
	return nil
}

// FindConfigFile looks for .scanpost/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".scanpost", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the scanpost cache directory (~/.cache/scanpost).
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "scanpost")
}

// ArchiveDir returns the local archive directory, honouring archive.dir.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(CacheDir(), "archive")
}
