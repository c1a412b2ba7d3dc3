// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultVolume is used when player.volume is absent.
const DefaultVolume = 0.8

// Environment variables overriding file values.
const (
	EnvToken      = "TUNEDECK_TOKEN"
	EnvLibraryDir = "TUNEDECK_LIBRARY_DIR"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig            `yaml:"server"`
	Player  PlayerConfig            `yaml:"player"`
	Library LibraryConfig           `yaml:"library"`
	Filters map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr        string      `yaml:"addr" default:":8080" validate:"required"`
	Token       string      `yaml:"token"`
	MetricsPath string      `yaml:"metrics_path" default:"/metrics" validate:"omitempty,startswith=/"`
	Hooks       HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// PlayerConfig represents playback configuration.
type PlayerConfig struct {
	Volume             *float64 `yaml:"volume" default:"0.8" validate:"omitempty,gte=0,lte=1"` // nil when absent; 0 starts muted
	Shuffle            bool     `yaml:"shuffle"`
	Repeat             bool     `yaml:"repeat"`
	ProgressIntervalMs int      `yaml:"progress_interval_ms" default:"250" validate:"gte=50,lte=5000"`
	EventBuffer        int      `yaml:"event_buffer" default:"64" validate:"gte=1,lte=4096"`
	SampleRate         int      `yaml:"sample_rate" default:"44100" validate:"oneof=22050 32000 44100 48000 96000"`
}

// LibraryConfig represents the local music directory configuration.
type LibraryConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return Parse(nil)
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv(EnvToken); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv(EnvLibraryDir); v != "" {
		c.Library.Dir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Library.Watch && c.Library.Dir == "" {
		return errors.New("library.watch requires library.dir")
	}
	return nil
}

// InitialVolume returns the volume the player starts with.
func (c *Config) InitialVolume() float64 {
	if c.Player.Volume == nil {
		return DefaultVolume
	}
	return *c.Player.Volume
}

// ProgressInterval returns the media progress reporting interval.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Player.ProgressIntervalMs) * time.Millisecond
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
