package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Sequence modes.
const (
	ModeScripted = "scripted"
	ModeRandom   = "random"
)

// Config represents the application configuration
type Config struct {
	Hue         HueConfig         `yaml:"hue"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Sequence    SequenceConfig    `yaml:"sequence"`
	Log         LogConfig         `yaml:"log"`
}

// HueConfig contains Hue bridge connection and pairing settings
type HueConfig struct {
	// Bridge and Token skip discovery and pairing when both are set.
	Bridge  string   `yaml:"bridge"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"` // HTTP timeout for listing lights and registering

	AppName            string   `yaml:"app_name"`
	DiscoveryTimeout   Duration `yaml:"discovery_timeout"`
	PairingInterval    Duration `yaml:"pairing_interval"`     // Wait between registration attempts
	PairingMaxAttempts int      `yaml:"pairing_max_attempts"` // 0 = retry forever
	PairingDeadline    Duration `yaml:"pairing_deadline"`     // 0 = no deadline
}

// CredentialsConfig contains credential file settings
type CredentialsConfig struct {
	Path string `yaml:"path"` // Empty = per-user config dir
}

// DispatchConfig contains light command settings
type DispatchConfig struct {
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // <= 0 disables throttling
}

// SequenceConfig contains the light script settings
type SequenceConfig struct {
	Mode           string   `yaml:"mode"`
	Marker         string   `yaml:"marker"`
	LightCount     int      `yaml:"light_count"`
	Countdown      Duration `yaml:"countdown"`
	Darkness       Duration `yaml:"darkness"`
	Step           Duration `yaml:"step"`
	SteadyInterval Duration `yaml:"steady_interval"`
	ColorWidth     int      `yaml:"color_width"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Log: LogConfig{Colors: true}}
	cfg.Dispatch.RateLimitRPS = 10.0
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	cfg := Config{
		Log:      LogConfig{Colors: true},
		Dispatch: DispatchConfig{RateLimitRPS: 10.0},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Hue defaults
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(30 * time.Second)
	}
	if cfg.Hue.AppName == "" {
		cfg.Hue.AppName = "HaParty"
	}
	if cfg.Hue.DiscoveryTimeout == 0 {
		cfg.Hue.DiscoveryTimeout = Duration(5 * time.Second)
	}
	if cfg.Hue.PairingInterval == 0 {
		cfg.Hue.PairingInterval = Duration(500 * time.Millisecond)
	}
	// PairingMaxAttempts and PairingDeadline default to 0 (forever)

	// Sequence defaults
	if cfg.Sequence.Mode == "" {
		cfg.Sequence.Mode = ModeScripted
	}
	if cfg.Sequence.Marker == "" {
		cfg.Sequence.Marker = "color"
	}
	if cfg.Sequence.LightCount == 0 {
		cfg.Sequence.LightCount = 3
	}
	if cfg.Sequence.Countdown == 0 {
		cfg.Sequence.Countdown = Duration(5 * time.Second)
	}
	if cfg.Sequence.Darkness == 0 {
		cfg.Sequence.Darkness = Duration(3 * time.Second)
	}
	if cfg.Sequence.Step == 0 {
		cfg.Sequence.Step = Duration(2 * time.Second)
	}
	if cfg.Sequence.SteadyInterval == 0 {
		cfg.Sequence.SteadyInterval = Duration(1 * time.Second)
	}
	if cfg.Sequence.ColorWidth == 0 {
		cfg.Sequence.ColorWidth = 32
	}
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Sequence.Mode {
	case ModeScripted, ModeRandom:
	default:
		return fmt.Errorf("sequence.mode: unknown mode %q", c.Sequence.Mode)
	}
	if c.Sequence.LightCount < 0 {
		return fmt.Errorf("sequence.light_count: must be positive, got %d", c.Sequence.LightCount)
	}
	if c.Sequence.ColorWidth < 1 || c.Sequence.ColorWidth > 128 {
		return fmt.Errorf("sequence.color_width: must be within 1..128, got %d", c.Sequence.ColorWidth)
	}
	if c.Hue.PairingMaxAttempts < 0 {
		return fmt.Errorf("hue.pairing_max_attempts: must not be negative")
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
