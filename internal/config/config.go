package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Log             LogConfig       `yaml:"log"`
	Geo             GeoConfig       `yaml:"geo"`
	Clock           ClockConfig     `yaml:"clock"`
	Strip           StripConfig     `yaml:"strip"`
	Animation       AnimationConfig `yaml:"animation"`
	Scheduler       SchedulerConfig `yaml:"scheduler"`
	Palette         PaletteConfig   `yaml:"palette"`
	Database        DatabaseConfig  `yaml:"database"`
	Ledger          LedgerConfig    `yaml:"ledger"`
	EventBus        EventBusConfig  `yaml:"eventbus"`
	HTTP            HTTPConfig      `yaml:"http"`
	MQTT            MQTTConfig      `yaml:"mqtt"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops

	// BaseDir is the directory of the loaded file; relative script paths resolve against it.
	BaseDir string `yaml:"-"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level         string   `yaml:"level"`
	Colors        bool     `yaml:"colors"`
	UseJSON       bool     `yaml:"json"`
	PrintSchedule Duration `yaml:"print_schedule"` // Interval to print the phase table (0 = disabled)
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// GeoConfig contains the lamp's location for astronomical calculations
type GeoConfig struct {
	Name     string  `yaml:"name"`
	Timezone string  `yaml:"timezone"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
}

// ClockConfig controls when the wall clock is considered trustworthy
type ClockConfig struct {
	MinYear     int      `yaml:"min_year"`     // Clock is untrusted before this year (default: 2024)
	RetryBudget int      `yaml:"retry_budget"` // Untrusted ticks before a resync is requested (default: 20)
	Tick        Duration `yaml:"tick"`         // Scheduler tick (default: 1s)
	ResyncCmd   string   `yaml:"resync_cmd"`   // Optional command run on resync, e.g. "chronyc makestep"
}

// StripConfig describes the pixel strip
type StripConfig struct {
	Pixels int    `yaml:"pixels"` // Number of pixels (default: 16)
	Sink   string `yaml:"sink"`   // "log" or "none" (default: log)
}

// AnimationConfig contains animation engine settings
type AnimationConfig struct {
	QueueSize int      `yaml:"queue_size"` // Inbound command queue (default: 8)
	Tick      Duration `yaml:"tick"`       // Engine tick (default: 10ms)
}

// SchedulerConfig contains day-phase scheduler settings
type SchedulerConfig struct {
	QueueSize      int   `yaml:"queue_size"`       // Inbound message queue (default: 8)
	EnabledOnStart *bool `yaml:"enabled_on_start"` // Start in sun imitation mode (default: true)
}

// IsEnabledOnStart returns whether sun imitation starts enabled
func (c *SchedulerConfig) IsEnabledOnStart() bool {
	return c.EnabledOnStart == nil || *c.EnabledOnStart
}

// PaletteConfig points at an optional Lua script overriding the phase colors
type PaletteConfig struct {
	Script string `yaml:"script"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // Empty disables the ledger
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// HTTPConfig contains the control surface settings
type HTTPConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"` // Mutating requests per second (default: 5)
	Burst     int     `yaml:"burst"`      // Rate limiter burst (default: 10)
}

// Addr returns host:port
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MQTTConfig contains the MQTT bridge settings
type MQTTConfig struct {
	Broker        string   `yaml:"broker"` // e.g. tcp://localhost:1883, empty disables the bridge
	ClientID      string   `yaml:"client_id"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	Prefix        string   `yaml:"prefix"`
	QoS           byte     `yaml:"qos"`
	PublishFrames bool     `yaml:"publish_frames"`
	Timeout       Duration `yaml:"timeout"`
}

// Enabled reports whether a broker is configured
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// GetShutdownTimeout returns shutdown timeout with default
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout.Duration()
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

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = filepath.Dir(path)
	return cfg, nil
}

// Parse expands environment variables in data, decodes it and applies defaults
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Geo defaults
	if cfg.Geo.Timezone == "" {
		cfg.Geo.Timezone = "UTC"
	}

	// Clock defaults
	if cfg.Clock.MinYear == 0 {
		cfg.Clock.MinYear = 2024
	}
	if cfg.Clock.RetryBudget == 0 {
		cfg.Clock.RetryBudget = 20
	}
	if cfg.Clock.Tick == 0 {
		cfg.Clock.Tick = Duration(time.Second)
	}

	// Strip defaults
	if cfg.Strip.Pixels == 0 {
		cfg.Strip.Pixels = 16
	}
	if cfg.Strip.Sink == "" {
		cfg.Strip.Sink = "log"
	}

	// Animation defaults
	if cfg.Animation.QueueSize == 0 {
		cfg.Animation.QueueSize = 8
	}
	if cfg.Animation.Tick == 0 {
		cfg.Animation.Tick = Duration(10 * time.Millisecond)
	}

	// Scheduler defaults
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 8
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// HTTP defaults
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.RateLimit == 0 {
		cfg.HTTP.RateLimit = 5
	}
	if cfg.HTTP.Burst == 0 {
		cfg.HTTP.Burst = 10
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "sunlamp"
	}
	if cfg.MQTT.Prefix == "" {
		cfg.MQTT.Prefix = "sunlamp"
	}
	if cfg.MQTT.Timeout == 0 {
		cfg.MQTT.Timeout = Duration(10 * time.Second)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks value ranges that defaults cannot fix
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Geo.Lat < -90 || cfg.Geo.Lat > 90 {
		errs = append(errs, fmt.Errorf("geo.lat must be within [-90, 90], got %v", cfg.Geo.Lat))
	}
	if cfg.Geo.Lon < -180 || cfg.Geo.Lon > 180 {
		errs = append(errs, fmt.Errorf("geo.lon must be within [-180, 180], got %v", cfg.Geo.Lon))
	}
	if _, err := time.LoadLocation(cfg.Geo.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("geo.timezone: %w", err))
	}
	if cfg.Strip.Pixels < 1 || cfg.Strip.Pixels > 255 {
		errs = append(errs, fmt.Errorf("strip.pixels must be within [1, 255], got %d", cfg.Strip.Pixels))
	}
	switch cfg.Strip.Sink {
	case "log", "none":
	default:
		errs = append(errs, fmt.Errorf("strip.sink must be log or none, got %q", cfg.Strip.Sink))
	}
	if cfg.Clock.RetryBudget < 1 {
		errs = append(errs, fmt.Errorf("clock.retry_budget must be positive, got %d", cfg.Clock.RetryBudget))
	}
	if cfg.Animation.Tick.Duration() < time.Millisecond {
		errs = append(errs, fmt.Errorf("animation.tick must be at least 1ms, got %s", cfg.Animation.Tick.Duration()))
	}
	if cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS))
	}

	return errors.Join(errs...)
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
