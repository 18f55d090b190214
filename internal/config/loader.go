package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// DataDirName is the default data directory name under $HOME.
	DataDirName = ".wasp"
	// ConfigFile is the config file name inside the data directory.
	ConfigFile = "config.json"
	// DBFile is the database file name inside the data directory.
	DBFile = "wasp.db"
)

// DataDir resolves the data directory, honoring WASP_HOME and "~" prefixes.
func DataDir() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("WASP_HOME")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DataDirName), nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load reads the config file from the data directory (if present), overlays
// WASP_* environment variables, and validates the result. A missing config
// file is not an error: defaults apply.
func Load() (*Config, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	return LoadFrom(filepath.Join(dir, ConfigFile))
}

// LoadFrom reads a specific config file path. Exposed for tests.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Each group is processed on its own so that a field's envconfig tag is
	// the whole name after the prefix (WASP_CANARY_THRESHOLD, WASP_API_TOKEN).
	groups := []any{&cfg.Paths, &cfg.Policy, &cfg.Inbound, &cfg.Canary,
		&cfg.RateLimit, &cfg.Signature, &cfg.Admin, &cfg.Events, &cfg.Alerts}
	for _, group := range groups {
		if err := envconfig.Process("WASP", group); err != nil {
			return nil, fmt.Errorf("apply env overrides: %w", err)
		}
	}
	if cfg.Paths.DataDir != "" {
		expanded, err := expandHome(cfg.Paths.DataDir)
		if err != nil {
			return nil, err
		}
		cfg.Paths.DataDir = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON. Used by `wasp init` to scaffold
// the data directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
