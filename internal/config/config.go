// Package config defines configuration for the labreg console.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file omits a value.
const (
	DefaultServerURL    = "http://localhost:4000"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultMaxAttempts  = 3
	DefaultCooldown     = 30 * time.Second
	DefaultSplashDelay  = 3 * time.Second
	defaultStateDirName = ".labreg"
)

// Config is the complete console configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	State  StateConfig  `yaml:"state"`
	Gate   GateConfig   `yaml:"gate"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig describes the remote registry API.
type ServerConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// StateConfig locates the local state directory holding the device mirror
// and session files.
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// GateConfig tunes the session gate. Zero values fall back to the fixed
// policy defaults (5 minute idle lock, 3 attempts, 30 second cool-down).
type GateConfig struct {
	IdleTimeout Duration `yaml:"idle_timeout"`
	MaxAttempts int      `yaml:"max_attempts"`
	Cooldown    Duration `yaml:"cooldown"`
	SplashDelay Duration `yaml:"splash_delay"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// Load reads the YAML config at path and applies defaults. A missing file
// is not an error: the defaults alone are a working configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = Duration(DefaultHTTPTimeout)
	}
	if c.State.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.State.Dir = filepath.Join(home, defaultStateDirName)
	}
	if c.Gate.IdleTimeout <= 0 {
		c.Gate.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.Gate.MaxAttempts <= 0 {
		c.Gate.MaxAttempts = DefaultMaxAttempts
	}
	if c.Gate.Cooldown <= 0 {
		c.Gate.Cooldown = Duration(DefaultCooldown)
	}
	if c.Gate.SplashDelay <= 0 {
		c.Gate.SplashDelay = Duration(DefaultSplashDelay)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return fmt.Errorf("server url must be http or https, got %q", c.Server.URL)
	}
	return nil
}
