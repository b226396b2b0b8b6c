package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Constellation ConstellationConfig `yaml:"constellation" toml:"constellation"`
	Content       ContentConfig       `yaml:"content" toml:"content"`
	HangMonitor   HangMonitorConfig   `yaml:"hang_monitor" toml:"hang_monitor"`
	Loader        LoaderConfig        `yaml:"loader" toml:"loader"`
	Logging       LogConfig           `yaml:"logging" toml:"logging"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
	// HealthPort serves grpc.health.v1; empty disables it
	HealthPort string `envconfig:"HEALTH_PORT" default:"50061" yaml:"health_port" toml:"health_port"`
}

// ConstellationConfig sizes the orchestrator.
type ConstellationConfig struct {
	MailboxSize       int      `envconfig:"MAILBOX_SIZE" default:"1024" yaml:"mailbox_size" toml:"mailbox_size"`
	ScriptQueueSize   int      `envconfig:"SCRIPT_QUEUE_SIZE" default:"256" yaml:"script_queue_size" toml:"script_queue_size"`
	RetainedPipelines int      `envconfig:"RETAINED_PIPELINES" default:"8" yaml:"retained_pipelines" toml:"retained_pipelines"`
	ShutdownTimeout   Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	HomeURL           string   `envconfig:"HOME_URL" default:"about:blank" yaml:"home_url" toml:"home_url"`
}

// ContentConfig controls script execution in content threads.
type ContentConfig struct {
	ScriptTimeout  Duration `envconfig:"SCRIPT_TIMEOUT" default:"2s" yaml:"script_timeout" toml:"script_timeout"`
	ScriptsEnabled bool     `envconfig:"SCRIPTS_ENABLED" default:"true" yaml:"scripts_enabled" toml:"scripts_enabled"`
}

// HangMonitorConfig holds hang detection configuration.
type HangMonitorConfig struct {
	Timeout       Duration `envconfig:"HANG_TIMEOUT" default:"3s" yaml:"timeout" toml:"timeout"`
	CheckInterval Duration `envconfig:"HANG_CHECK_INTERVAL" default:"500ms" yaml:"check_interval" toml:"check_interval"`
}

// LoaderConfig holds resource loader configuration.
type LoaderConfig struct {
	Timeout   Duration `envconfig:"LOADER_TIMEOUT" default:"30s" yaml:"timeout" toml:"timeout"`
	Retries   int      `envconfig:"LOADER_RETRIES" default:"2" yaml:"retries" toml:"retries"`
	UserAgent string   `envconfig:"LOADER_USER_AGENT" default:"Constellation/1.0" yaml:"user_agent" toml:"user_agent"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration written as "2s" in env vars and files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       "8000",
			Host:       "0.0.0.0",
			HealthPort: "50061",
		},
		Constellation: ConstellationConfig{
			MailboxSize:       1024,
			ScriptQueueSize:   256,
			RetainedPipelines: 8,
			ShutdownTimeout:   Duration(5 * time.Second),
			HomeURL:           "about:blank",
		},
		Content: ContentConfig{
			ScriptTimeout:  Duration(2 * time.Second),
			ScriptsEnabled: true,
		},
		HangMonitor: HangMonitorConfig{
			Timeout:       Duration(3 * time.Second),
			CheckInterval: Duration(500 * time.Millisecond),
		},
		Loader: LoaderConfig{
			Timeout:   Duration(30 * time.Second),
			Retries:   2,
			UserAgent: "Constellation/1.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
