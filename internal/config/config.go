// Package config loads and hot-reloads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Remote configures the connection to the sync gateway. An empty URL means
// local-only mode.
type Remote struct {
	URL       string `yaml:"url" validate:"omitempty,uri"`
	Token     string `yaml:"token"`
	Reconnect bool   `yaml:"reconnect"`
}

// Identity names the pre-provisioned account the daemon signs in as. Both
// fields empty means the daemon starts signed out.
type Identity struct {
	ID    string `yaml:"id"`
	Email string `yaml:"email" validate:"omitempty,email"`
}

// Config is the daemon configuration file.
type Config struct {
	// Listen is the address for the viewer websocket endpoint.
	Listen string `yaml:"listen" validate:"required,hostname_port"`

	// DataDir holds the local note store.
	DataDir string `yaml:"data_dir" validate:"required"`

	Remote   Remote   `yaml:"remote"`
	Identity Identity `yaml:"identity"`

	// IgnorePatterns are host/path globs for URLs where note capture is
	// disabled, e.g. "mail.example.com/**".
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:   "127.0.0.1:7643",
		DataDir:  defaultDataDir(),
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".stratum"
	}
	return base + "/stratum"
}

// Load reads, parses and validates the file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func validate(cfg Config) error {
	return validator.New().Struct(cfg)
}
