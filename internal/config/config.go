// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: command-line flags > environment variables > config file > defaults.
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all agent configuration.
type Config struct {
	Broker     BrokerConfig     `yaml:"broker"`
	Collection CollectionConfig `yaml:"collection"`
	Buffer     BufferConfig     `yaml:"buffer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BrokerConfig holds MQTT broker connection settings.
type BrokerConfig struct {
	URL         string `yaml:"url"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// CollectionConfig holds sampling settings.
type CollectionConfig struct {
	// Interval between statistics samples. Zero disables periodic statistics.
	Interval Duration `yaml:"interval"`
	// InfoInterval between process info samples. Zero disables them.
	InfoInterval Duration `yaml:"info_interval"`
	// Timeout bounds a single sample.
	Timeout Duration `yaml:"timeout"`
	// PID of the process to monitor; 0 means the agent itself.
	PID int32 `yaml:"pid"`
}

// BufferConfig holds the local buffer for unpublished messages.
type BufferConfig struct {
	MaxSizeMB int    `yaml:"max_size_mb"`
	Dir       string `yaml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			URL:         "tcp://localhost:1883",
			TopicPrefix: "vitalis/node",
			QoS:         1,
		},
		Collection: CollectionConfig{
			Interval:     Duration{15 * time.Second},
			InfoInterval: Duration{1 * time.Minute},
			Timeout:      Duration{10 * time.Second},
		},
		Buffer: BufferConfig{
			MaxSizeMB: 50,
			Dir:       "./buffer",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	PID int32
}

// ToPID converts v to a process ID. Values outside 0..MaxInt32 are rejected
// rather than truncated.
func ToPID(v int64) (int32, error) {
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("pid %d out of range", v)
	}
	return int32(v), nil
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > YAML file > defaults. An empty path triggers
// discovery via Locate.
func LoadLayered(cli CLIOverrides, path string) (*Config, error) {
	if path == "" {
		path = Locate()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if cli.PID != 0 {
		cfg.Collection.PID = cli.PID
	}
	return cfg, nil
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("VT_BROKER_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv("VT_BROKER_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv("VT_BROKER_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}
	if v := os.Getenv("VT_TOPIC_PREFIX"); v != "" {
		cfg.Broker.TopicPrefix = v
	}
	if v := os.Getenv("VT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VT_PID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid VT_PID %q: %w", v, err)
		}
		pid, err := ToPID(n)
		if err != nil {
			return fmt.Errorf("invalid VT_PID: %w", err)
		}
		cfg.Collection.PID = pid
	}
	return nil
}

var brokerSchemes = map[string]bool{
	"tcp":   true,
	"ssl":   true,
	"tls":   true,
	"ws":    true,
	"wss":   true,
	"mqtt":  true,
	"mqtts": true,
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Broker.URL == "" {
		return fmt.Errorf("broker URL is required")
	}
	u, err := url.Parse(c.Broker.URL)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	if !brokerSchemes[u.Scheme] {
		return fmt.Errorf("unsupported broker URL scheme %q", u.Scheme)
	}
	if c.Broker.TopicPrefix == "" {
		return fmt.Errorf("topic prefix is required")
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2 (got: %d)", c.Broker.QoS)
	}
	if c.Collection.Interval.Duration < 0 {
		return fmt.Errorf("collection interval must not be negative")
	}
	if c.Collection.InfoInterval.Duration < 0 {
		return fmt.Errorf("info interval must not be negative")
	}
	if c.Collection.Timeout.Duration <= 0 {
		return fmt.Errorf("collection timeout must be positive")
	}
	if c.Collection.PID < 0 {
		return fmt.Errorf("pid must not be negative (got: %d)", c.Collection.PID)
	}
	if c.Buffer.MaxSizeMB <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	return nil
}
