// Package config loads the settings shared by the drum programs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/mcphysics/drumscan/lib/cmdlog"
)

// Config is the complete configuration of a drum session.
type Config struct {
	Stage  StageConfig        `yaml:"stage"`
	Timing TimingConfig       `yaml:"timing"`
	Store  StoreConfig        `yaml:"store"`
	Log    cmdlog.FileOptions `yaml:"log"`
	// Sim selects simulated devices: "none", "daq" (m2k and sound card) or
	// "all".
	Sim string `yaml:"sim"`
}

// StageConfig holds the serial connection to the motor stage.
type StageConfig struct {
	Port     string        `yaml:"port"`
	Baud     int           `yaml:"baud"`
	Geometry string        `yaml:"geometry"`
	Delay    time.Duration `yaml:"delay"`
	Identify bool          `yaml:"identify"`
}

// TimingConfig bounds waits on the devices.
type TimingConfig struct {
	Poll    time.Duration `yaml:"poll"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig locates the results database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Stage: StageConfig{
			Baud:     115200,
			Geometry: "circle",
		},
		Timing: TimingConfig{
			Poll:    50 * time.Millisecond,
			Timeout: 5 * time.Minute,
		},
		Log: cmdlog.FileOptions{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Sim: "none",
	}
}

// Load returns the defaults overlaid with the file at path (if not empty)
// and the environment, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("DRUM_PORT"); port != "" {
		cfg.Stage.Port = port
	}
	if db := os.Getenv("DRUM_DB"); db != "" {
		cfg.Store.Path = db
	}
	if sim := os.Getenv("DRUM_SIM"); sim != "" {
		cfg.Sim = sim
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Sim {
	case "none", "daq", "all":
	default:
		return fmt.Errorf("invalid sim mode %q, must be one of none, daq, all", c.Sim)
	}
	if c.Stage.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Stage.Baud)
	}
	if c.Timing.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Timing.Poll)
	}
	if c.Timing.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timing.Timeout)
	}
	return nil
}
