package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Feed      FeedConfig      `yaml:"feed"`
	Log       LogConfig       `yaml:"log"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local dashboard server configuration
type ServerConfig struct {
	Port int    `yaml:"port" split_words:"true"`
	Host string `yaml:"host" split_words:"true"`
}

// DashboardConfig points at the backend that owns the status feed
type DashboardConfig struct {
	// Origin is the page origin the dashboard is served from, e.g. https://admin.example.com
	Origin string `yaml:"origin" split_words:"true"`
	Token  string `yaml:"token" split_words:"true"`

	FallbackPath   string        `yaml:"fallback_path" split_words:"true"`
	PollInterval   time.Duration `yaml:"poll_interval" split_words:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`
}

// FeedConfig holds the status feed connection settings
type FeedConfig struct {
	Path             string        `yaml:"path" split_words:"true"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay" split_words:"true"`
	MaxReconnect     time.Duration `yaml:"max_reconnect_delay" split_words:"true"`
	MaxAttempts      int           `yaml:"max_attempts" split_words:"true"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" split_words:"true"`
	WriteTimeout     time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" split_words:"true"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	BufferSize  int    `yaml:"buffer_size" split_words:"true"`
	EventBuffer int    `yaml:"event_buffer" split_words:"true"`
}

// envPrefix is prepended to every environment override, e.g. PADMONITOR_ORIGIN
// or PADMONITOR_FEED_MAX_ATTEMPTS.
const envPrefix = "PADMONITOR"

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8090,
			Host: "127.0.0.1",
		},
		Dashboard: DashboardConfig{
			Origin:         "http://localhost:8000",
			FallbackPath:   "/api/status/snapshot",
			PollInterval:   5 * time.Second,
			RequestTimeout: 15 * time.Second,
		},
		Feed: FeedConfig{
			Path:             "/ws",
			ReconnectDelay:   1 * time.Second,
			MaxReconnect:     30 * time.Second,
			MaxAttempts:      5,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
			IdleTimeout:      75 * time.Second,
		},
		Log: LogConfig{
			Level:       "info",
			BufferSize:  500,
			EventBuffer: 100,
		},
	}
}

// Load loads configuration from the given file, or from the first file found
// in the common locations when path is empty. Environment variables are
// applied on top of the file.
func Load(path string) (*Config, error) {
	configPaths := []string{
		"config.yaml",
		"configs/config.yaml",
		"/etc/padmonitor/config.yaml",
	}
	if path != "" {
		configPaths = []string{path}
	}

	var data []byte
	var err error
	var loadedPath string

	for _, p := range configPaths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	cfg := Default()
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// No file anywhere; defaults plus environment only.
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", loadedPath, err)
		}
		cfg.ConfigPath = loadedPath
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if err := envconfig.Process(envPrefix, &c.Server); err != nil {
		return fmt.Errorf("server env: %w", err)
	}
	if err := envconfig.Process(envPrefix, &c.Dashboard); err != nil {
		return fmt.Errorf("dashboard env: %w", err)
	}
	if err := envconfig.Process(envPrefix+"_FEED", &c.Feed); err != nil {
		return fmt.Errorf("feed env: %w", err)
	}
	if err := envconfig.Process(envPrefix+"_LOG", &c.Log); err != nil {
		return fmt.Errorf("log env: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the rest of the program cannot work with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	u, err := url.Parse(c.Dashboard.Origin)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("dashboard.origin: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("dashboard.origin must be http or https, got %q", c.Dashboard.Origin))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("dashboard.origin has no host: %q", c.Dashboard.Origin))
	}

	if c.Dashboard.PollInterval <= 0 {
		errs = append(errs, errors.New("dashboard.poll_interval must be positive"))
	}
	if c.Dashboard.RequestTimeout <= 0 {
		errs = append(errs, errors.New("dashboard.request_timeout must be positive"))
	}
	if c.Feed.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("feed.reconnect_delay must be positive"))
	}
	if c.Feed.MaxReconnect < c.Feed.ReconnectDelay {
		errs = append(errs, errors.New("feed.max_reconnect_delay must not be below feed.reconnect_delay"))
	}
	if c.Feed.MaxAttempts < 0 {
		errs = append(errs, errors.New("feed.max_attempts must not be negative"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Write encodes the configuration as YAML to w
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
