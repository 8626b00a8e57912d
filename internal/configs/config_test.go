package configs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if config.AppName != "chatvault" {
		t.Errorf("Expected app name chatvault, got %q", config.AppName)
	}
	if config.PBKDF2Iterations != 100_000 {
		t.Errorf("Expected 100000 iterations, got %d", config.PBKDF2Iterations)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.NATS.SubjectPrefix != DefaultConfig().NATS.SubjectPrefix {
		t.Errorf("Expected default subject prefix, got %q", config.NATS.SubjectPrefix)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatvault", "config.toml")

	config := DefaultConfig()
	config.AppName = "acme"
	config.DatabasePath = "/tmp/acme.db"
	config.PBKDF2Iterations = 250_000
	config.NATS.RequestTimeout = "2s"

	if err := Save(path, config); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.AppName != "acme" || loaded.DatabasePath != "/tmp/acme.db" || loaded.PBKDF2Iterations != 250_000 {
		t.Errorf("Loaded config mismatch: %+v", loaded)
	}

	timeout, err := loaded.NATS.Timeout()
	if err != nil || timeout != 2*time.Second {
		t.Errorf("Expected 2s timeout, got %v (%v)", timeout, err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("app_name = \"acme\"\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.AppName != "acme" {
		t.Errorf("Expected acme, got %q", config.AppName)
	}
	if config.PBKDF2Iterations != MinPBKDF2Iterations {
		t.Errorf("Expected default iterations, got %d", config.PBKDF2Iterations)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"weak iterations", "pbkdf2_iterations = 1000\n", "pbkdf2_iterations"},
		{"empty app name", "app_name = \"\"\n", "app_name"},
		{"bad timeout", "[nats]\nrequest_timeout = \"soon\"\n", "request_timeout"},
		{"unknown key", "colour = \"blue\"\n", "unknown keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultConfigPathUsesXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honoured on linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	if got := DefaultConfigPath(); got != "/tmp/xdg-test/chatvault/config.toml" {
		t.Errorf("Unexpected config path %q", got)
	}
	if got := DataDir(); got != "/tmp/xdg-data/chatvault" {
		t.Errorf("Unexpected data dir %q", got)
	}
}
