package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultFlushInterval = 15 * time.Second
	DefaultMaxQueue      = 1000
	DefaultConsentFile   = ".cc_consent.json"
	DefaultTimeout       = 10 * time.Second
	DefaultWidgetVersion = "1.0.0"
)

// Config is the top-level configuration read by the tracker.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
}

// TrackerConfig holds all tracker-side settings.
type TrackerConfig struct {
	// Endpoint is the full URL of the server's POST /events route.
	Endpoint string `yaml:"endpoint"`

	// MetricsURL is scraped by the stats command.
	MetricsURL string `yaml:"metrics_url"`

	// FlushInterval controls how often queued events are sent.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// MaxQueue is the maximum number of events held while the server is
	// unreachable.
	MaxQueue int `yaml:"max_queue"`

	ConsentFile   string        `yaml:"consent_file"`
	WidgetVersion string        `yaml:"widget_version"`
	LandingURL    string        `yaml:"landing_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

// EffectiveMetricsURL returns MetricsURL, or Endpoint with its last path
// segment replaced by "metrics".
func (t TrackerConfig) EffectiveMetricsURL() string {
	if t.MetricsURL != "" || t.Endpoint == "" {
		return t.MetricsURL
	}
	u, err := url.Parse(t.Endpoint)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[:i]
	}
	u.Path = path + "/metrics"
	u.RawQuery = ""
	return u.String()
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return defaults()
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Tracker: TrackerConfig{
			FlushInterval: DefaultFlushInterval,
			MaxQueue:      DefaultMaxQueue,
			ConsentFile:   DefaultConsentFile,
			Timeout:       DefaultTimeout,
			WidgetVersion: DefaultWidgetVersion,
		},
	}
}

// validate checks structural constraints.
func validate(cfg *Config) error {
	t := cfg.Tracker
	if t.FlushInterval <= 0 {
		return fmt.Errorf("tracker.flush_interval must be positive")
	}
	if t.MaxQueue <= 0 {
		return fmt.Errorf("tracker.max_queue must be positive")
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("tracker.timeout must be positive")
	}
	if t.ConsentFile == "" {
		return fmt.Errorf("tracker.consent_file is required")
	}
	for name, raw := range map[string]string{"endpoint": t.Endpoint, "metrics_url": t.MetricsURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("tracker.%s %q must be an http(s) URL", name, raw)
		}
	}
	return nil
}
