package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/org/opsconsole/internal/action"
)

// CLIConfig is the persistent CLI configuration.
type CLIConfig struct {
	// Address is the console URL; the API base is derived from it.
	Address   string        `yaml:"address"`
	TLSCACert string        `yaml:"tls_ca_cert"`
	LogLevel  string        `yaml:"log_level"`
	Bounds    action.Bounds `yaml:"bounds"`
}

var cfg CLIConfig

// configPath returns the path to the CLI config file.
func configPath() string {
	if v := os.Getenv("OPSCTL_CONFIG"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".opsconsole", "config.yaml")
}

// loadConfig loads the CLI config from disk and applies env overrides.
func loadConfig() {
	cfg = CLIConfig{
		Address:  "http://127.0.0.1:8000/",
		LogLevel: "warn",
		Bounds:   action.DefaultBounds,
	}
	if data, err := os.ReadFile(configPath()); err == nil {
		yaml.Unmarshal(data, &cfg) //nolint:errcheck
	}
	if v := os.Getenv("OPSCTL_ADDR"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("OPSCTL_CACERT"); v != "" {
		cfg.TLSCACert = v
	}
}

// saveConfig persists the CLI config to disk.
func saveConfig() error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
