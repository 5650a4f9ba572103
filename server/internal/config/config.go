package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 4000
	DefaultAllowOrigin     = "*"
	DefaultNaverBaseURL    = "https://openapi.naver.com"
	DefaultNaverTimeout    = 10 * time.Second
	DefaultMaxMatches      = 5
	DefaultContextChars    = 120
	DefaultMaxBatch        = 500
	DefaultStreamInterval  = 5 * time.Second
	DefaultStreamDays      = 7
	DefaultClientIDEnv     = "NAVER_CLIENT_ID"
	DefaultClientSecretEnv = "NAVER_CLIENT_SECRET"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `tracker:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the API, metrics and WebSocket stream listen on (default 4000).
	HTTPPort int `yaml:"http_port"`

	// BasePath prefixes every route, e.g. "/.netlify/functions/proxy" when the
	// server sits behind a function gateway that does not strip its mount path.
	BasePath string `yaml:"base_path"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	CORS     CORSConfig     `yaml:"cors"`
	Naver    NaverConfig    `yaml:"naver"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Events   EventsConfig   `yaml:"events"`
	Auth     AuthConfig     `yaml:"auth"`
	Stream   StreamConfig   `yaml:"stream"`
}

// CORSConfig controls the Access-Control-Allow-Origin response header.
type CORSConfig struct {
	AllowOrigin string `yaml:"allow_origin"`
}

// NaverConfig points at the Naver Open API. Credentials are read from the
// environment variables named here, never from the YAML file.
type NaverConfig struct {
	ClientIDEnv     string        `yaml:"client_id_env"`
	ClientSecretEnv string        `yaml:"client_secret_env"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ClientID returns the Naver client id resolved from the environment.
func (n NaverConfig) ClientID() string { return envOrEmpty(n.ClientIDEnv) }

// ClientSecret returns the Naver client secret resolved from the environment.
func (n NaverConfig) ClientSecret() string { return envOrEmpty(n.ClientSecretEnv) }

// Enabled reports whether both Naver credentials are present.
func (n NaverConfig) Enabled() bool {
	return n.ClientID() != "" && n.ClientSecret() != ""
}

// CatalogConfig configures the local product catalog.
type CatalogConfig struct {
	// SeedFile is an optional YAML list of products replacing the built-in
	// demo seed. The file is watched and reloaded on change.
	SeedFile string `yaml:"seed_file"`
}

// AnalysisConfig tunes the article keyword matcher.
type AnalysisConfig struct {
	MaxMatches   int `yaml:"max_matches"`
	ContextChars int `yaml:"context_chars"`
}

// StorageConfig selects where events and approved matches are kept.
type StorageConfig struct {
	// Backend is one of: memory | sqlite | postgres.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file (backend sqlite).
	Path string `yaml:"path"`

	// DSNEnv names the environment variable holding the Postgres DSN (backend postgres).
	DSNEnv string `yaml:"dsn_env"`

	// Retention is how long the memory backend keeps events. Unset means
	// long enough to cover the analytics window, see RetentionFor.
	Retention time.Duration `yaml:"retention"`
}

// DSN returns the Postgres DSN resolved from the environment.
func (s StorageConfig) DSN() string { return envOrEmpty(s.DSNEnv) }

// EventsConfig controls the /events ingest endpoint.
type EventsConfig struct {
	// MaxBatch is the largest number of events accepted in one request.
	MaxBatch int `yaml:"max_batch"`

	// RequireConsent drops events whose metadata.consent is set to anything
	// other than "granted".
	RequireConsent bool `yaml:"require_consent"`
}

// AuthConfig guards the mutating catalog and match routes.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string { return envOrEmpty(a.KeyEnv) }

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StreamConfig controls the WebSocket analytics broadcast.
type StreamConfig struct {
	Interval time.Duration `yaml:"interval"`
	Days     int           `yaml:"days"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	cfg.Server.applyDerived()
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	if st := cfg.Server.Storage; st.Backend == "memory" && st.Retention < windowSpan(cfg.Server.Stream.Days) {
		slog.Warn("config: storage.retention is shorter than the analytics window; older days will read as zero",
			"retention", st.Retention, "stream_days", cfg.Server.Stream.Days)
	}

	cfg.Server.BasePath = strings.TrimRight(cfg.Server.BasePath, "/")
	return cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := defaults()
	cfg.Server.applyDerived()
	return cfg
}

// RetentionFor returns the memory retention that keeps every event an
// analytics window of days can read, plus one day of slack for clock skew
// between occurredAt and receivedAt.
func RetentionFor(days int) time.Duration {
	return windowSpan(days) + 24*time.Hour
}

func windowSpan(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// applyDerived fills settings whose defaults depend on other settings.
func (s *ServerConfig) applyDerived() {
	if s.Storage.Retention == 0 {
		s.Storage.Retention = RetentionFor(s.Stream.Days)
	}
}

// LoadEnv loads environment variables from path. An empty path tries
// .env.local first and then .env. Missing files are not an error; variables
// already set in the process environment are never overridden.
func LoadEnv(path string) error {
	candidates := []string{".env.local", ".env"}
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("server config: load env %q: %w", p, err)
		}
		slog.Info("config: loaded environment file", "path", p)
		return nil
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (s ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			LogLevel: "info",
			CORS:     CORSConfig{AllowOrigin: DefaultAllowOrigin},
			Naver: NaverConfig{
				ClientIDEnv:     DefaultClientIDEnv,
				ClientSecretEnv: DefaultClientSecretEnv,
				BaseURL:         DefaultNaverBaseURL,
				Timeout:         DefaultNaverTimeout,
			},
			Analysis: AnalysisConfig{
				MaxMatches:   DefaultMaxMatches,
				ContextChars: DefaultContextChars,
			},
			Storage: StorageConfig{
				Backend: "memory",
			},
			Events: EventsConfig{
				MaxBatch:       DefaultMaxBatch,
				RequireConsent: true,
			},
			Stream: StreamConfig{
				Interval: DefaultStreamInterval,
				Days:     DefaultStreamDays,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.BasePath != "" && !strings.HasPrefix(s.BasePath, "/") {
		return fmt.Errorf("server.base_path %q must start with /", s.BasePath)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	switch s.Storage.Backend {
	case "memory":
		if s.Storage.Retention <= 0 {
			return fmt.Errorf("server.storage.retention must be positive")
		}
	case "sqlite":
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for sqlite")
		}
	case "postgres":
		if s.Storage.DSNEnv == "" {
			return fmt.Errorf("server.storage.dsn_env is required for postgres")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want memory|sqlite|postgres", s.Storage.Backend)
	}
	if s.Analysis.MaxMatches <= 0 {
		return fmt.Errorf("server.analysis.max_matches must be positive")
	}
	if s.Analysis.ContextChars <= 0 {
		return fmt.Errorf("server.analysis.context_chars must be positive")
	}
	if s.Events.MaxBatch <= 0 {
		return fmt.Errorf("server.events.max_batch must be positive")
	}
	if s.Naver.Timeout <= 0 {
		return fmt.Errorf("server.naver.timeout must be positive")
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	if s.Stream.Days <= 0 || s.Stream.Days > 90 {
		return fmt.Errorf("server.stream.days %d is out of range [1, 90]", s.Stream.Days)
	}
	return nil
}

func envOrEmpty(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
