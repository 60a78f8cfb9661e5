// Package config loads the service configuration: optional YAML file,
// environment overrides, defaults, validation. Secrets come from the
// environment in production.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	defaultServiceName   = "quern"
	defaultServicePort   = 8090
	defaultPreviewRows   = 100
	defaultRowLimit      = 25000
	defaultMaxRows       = 1_000_000
	defaultRPS           = 5.0
	defaultSourceTimeout = 30 * time.Second
	defaultMaxRetries    = 3
	defaultSessionTTL    = 12 * time.Hour
	defaultCookieName    = "quern_session"
	defaultHistoryDB     = "sqlite"
	defaultHistoryDSN    = "quern_history.db"
	defaultMetricsPort   = 9090
	defaultLoggingLevel  = "info"
)

// Config holds the application configuration.
type Config struct {
	Service Service `yaml:"service"`
	Google  Google  `yaml:"google"`
	Source  Source  `yaml:"source"`
	Session Session `yaml:"session"`
	History History `yaml:"history"`
	Metrics Metrics `yaml:"metrics"`
	Logging Logging `yaml:"logging"`
}

// Service holds service-level configuration.
type Service struct {
	Name        string `yaml:"name"`
	Port        int    `yaml:"port"`
	BaseURL     string `yaml:"base_url"`
	PreviewRows int    `yaml:"preview_rows"`
	Debug       bool   `yaml:"debug"`
}

// Google holds the OAuth client configuration.
type Google struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Source holds Search Console client configuration.
type Source struct {
	RowLimit          int           `yaml:"row_limit"`
	MaxRows           int           `yaml:"max_rows"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
}

// UnmarshalYAML decodes Source, accepting Go duration strings ("30s")
// for the timeout, which the YAML decoder cannot produce on its own.
func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		RowLimit          int     `yaml:"row_limit"`
		MaxRows           int     `yaml:"max_rows"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Timeout           string  `yaml:"timeout"`
		MaxRetries        int     `yaml:"max_retries"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.RowLimit = raw.RowLimit
	s.MaxRows = raw.MaxRows
	s.RequestsPerSecond = raw.RequestsPerSecond
	s.MaxRetries = raw.MaxRetries
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("source.timeout: %w", err)
		}
		s.Timeout = d
	}
	return nil
}

// Session holds session store and cookie configuration.
type Session struct {
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookie_name"`
	Secret     string        `yaml:"secret"`
}

// UnmarshalYAML decodes Session, accepting a duration string for the TTL.
func (s *Session) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		TTL        string `yaml:"ttl"`
		CookieName string `yaml:"cookie_name"`
		Secret     string `yaml:"secret"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.CookieName = raw.CookieName
	s.Secret = raw.Secret
	if raw.TTL != "" {
		d, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("session.ttl: %w", err)
		}
		s.TTL = d
	}
	return nil
}

// History holds run-history persistence configuration.
// Backend is sqlite, postgres, or none.
type History struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// Metrics holds the Prometheus listener configuration.
type Metrics struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Logging holds logging configuration.
type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ValidationError describes a rejected configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Message)
}

// Load reads the YAML file at path (skipped when empty or missing),
// applies environment overrides and defaults, and returns the result.
// Validation is separate so one-shot CLI use can skip service checks.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	setDefaults(cfg)
	return cfg, nil
}

// applyEnv overrides file values from the environment. Explicit per
// field: the surface is small enough that reflection would obscure it.
func applyEnv(cfg *Config) {
	envString(&cfg.Service.BaseURL, "QUERN_BASE_URL")
	envInt(&cfg.Service.Port, "QUERN_PORT")
	envBool(&cfg.Service.Debug, "QUERN_DEBUG")

	envString(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	envString(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	envString(&cfg.Google.RedirectURL, "GOOGLE_REDIRECT_URL")

	envString(&cfg.Session.Secret, "QUERN_SESSION_SECRET")

	envString(&cfg.History.Backend, "QUERN_HISTORY_BACKEND")
	envString(&cfg.History.DSN, "QUERN_HISTORY_DSN")

	envString(&cfg.Logging.Level, "LOG_LEVEL")
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = defaultServicePort
	}
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Service.Port)
	}
	if cfg.Service.PreviewRows == 0 {
		cfg.Service.PreviewRows = defaultPreviewRows
	}
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = cfg.Service.BaseURL + "/auth/callback"
	}
	if cfg.Source.RowLimit == 0 {
		cfg.Source.RowLimit = defaultRowLimit
	}
	if cfg.Source.MaxRows == 0 {
		cfg.Source.MaxRows = defaultMaxRows
	}
	if cfg.Source.RequestsPerSecond == 0 {
		cfg.Source.RequestsPerSecond = defaultRPS
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = defaultSourceTimeout
	}
	if cfg.Source.MaxRetries == 0 {
		cfg.Source.MaxRetries = defaultMaxRetries
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = defaultSessionTTL
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = defaultCookieName
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = defaultHistoryDB
	}
	if cfg.History.DSN == "" && cfg.History.Backend == "sqlite" {
		cfg.History.DSN = defaultHistoryDSN
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = defaultMetricsPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLoggingLevel
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if err := validPort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := validPort("metrics.port", c.Metrics.Port); err != nil {
		return err
	}
	switch c.History.Backend {
	case "sqlite", "postgres", "none":
	default:
		return &ValidationError{
			Field:   "history.backend",
			Message: fmt.Sprintf("must be sqlite, postgres or none, got %q", c.History.Backend),
		}
	}
	if c.History.Backend == "postgres" && c.History.DSN == "" {
		return &ValidationError{Field: "history.dsn", Message: "is required for the postgres backend"}
	}
	return nil
}

// ValidateService additionally checks the fields the HTTP service needs.
func (c *Config) ValidateService() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Google.ClientID == "" {
		return &ValidationError{Field: "google.client_id", Message: "is required"}
	}
	if c.Google.ClientSecret == "" {
		return &ValidationError{Field: "google.client_secret", Message: "is required"}
	}
	if c.Session.Secret == "" {
		return &ValidationError{Field: "session.secret", Message: "is required"}
	}
	return nil
}

func validPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be 1-65535, got %d", port)}
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
