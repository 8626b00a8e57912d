package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MinPBKDF2Iterations mirrors the floor enforced by secrets.DeriveMasterKey.
const MinPBKDF2Iterations = 100_000

type Config struct {
	// AppName is mixed into the HKDF info string of v2 derived keys.
	// Changing it changes every derived key.
	AppName string `toml:"app_name"`

	DatabasePath     string `toml:"database_path"`
	PBKDF2Iterations int    `toml:"pbkdf2_iterations"`

	// AuditLogPath is the JSON Lines audit trail. Empty disables auditing.
	AuditLogPath string `toml:"audit_log_path"`

	NATS NATSConfig `toml:"nats"`
}

type NATSConfig struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
	Queue         string `toml:"queue"`

	// RequestTimeout is a Go duration string such as "5s".
	RequestTimeout string `toml:"request_timeout"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		AppName:          "chatvault",
		DatabasePath:     filepath.Join(DataDir(), "chatvault.db"),
		PBKDF2Iterations: MinPBKDF2Iterations,
		AuditLogPath:     filepath.Join(DataDir(), "audit.jsonl"),
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			SubjectPrefix:  "chatvault.crypto",
			Queue:          "chatvault",
			RequestTimeout: "5s",
		},
	}
}

// Load reads the config at path over the defaults. An empty path means
// DefaultConfigPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(path, config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Save writes the config to path.
func Save(path string, config *Config) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail deep inside an operation.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return fmt.Errorf("app_name must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.PBKDF2Iterations < MinPBKDF2Iterations {
		return fmt.Errorf("pbkdf2_iterations must be at least %d, got %d", MinPBKDF2Iterations, c.PBKDF2Iterations)
	}
	if _, err := c.NATS.Timeout(); err != nil {
		return err
	}
	return nil
}

// Timeout parses RequestTimeout, defaulting to five seconds when unset.
func (n NATSConfig) Timeout() (time.Duration, error) {
	if n.RequestTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(n.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("nats.request_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("nats.request_timeout must be positive, got %s", d)
	}
	return d, nil
}
