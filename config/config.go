// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Template  TemplateConfig  `yaml:"template"`
	Functions FunctionsConfig `yaml:"functions"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Docs      DocsConfig      `yaml:"docs"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TemplateConfig configures the template the gateway serves.
type TemplateConfig struct {
	// Path locates the template file. Fragment locations inside the
	// template resolve relative to its directory.
	Path string `yaml:"path"`

	// Parameters override template parameter defaults by name.
	Parameters map[string]string `yaml:"parameters,omitempty"`

	// Stage overrides the stage name the gateway serves under. When empty
	// the selected API resource's StageName applies, falling back to Prod.
	Stage string `yaml:"stage,omitempty"`

	// GatewayID selects the API resource by logical ID when the template
	// declares more than one.
	GatewayID string `yaml:"gateway_id,omitempty"`

	// BinaryMediaTypes supplements the types declared on the API resource.
	BinaryMediaTypes []string `yaml:"binary_media_types,omitempty"`

	// Watch rebuilds the route table when the template file changes.
	Watch bool `yaml:"watch"`
}

// FunctionsConfig configures handler invocation.
type FunctionsConfig struct {
	// Endpoints maps a handler reference, or a dotted prefix of one, to the
	// base URL of a running function container.
	Endpoints map[string]string `yaml:"endpoints,omitempty"`

	// Timeout bounds a single handler invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures resolved-template memoization.
// Use "memory", "sqlite", or "none" to disable.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // "memory", "sqlite" or "none"
	Path    string        `yaml:"path"`    // sqlite file (backend=sqlite)
	TTL     time.Duration `yaml:"ttl"`
}

// AuthConfig configures request authentication for gateway routes.
// Use "none", "jwt", or "apikey".
type AuthConfig struct {
	Mode      string   `yaml:"mode"`                 // "none", "jwt" or "apikey"
	Header    string   `yaml:"header"`               // key/token header (default: X-API-Key)
	JWTSecret string   `yaml:"jwt_secret,omitempty"` // HMAC secret (mode=jwt)
	APIKeys   []string `yaml:"api_keys,omitempty"`   // bcrypt key hashes (mode=apikey)
}

// DocsConfig configures the served API documentation.
type DocsConfig struct {
	Enabled bool `yaml:"enabled"` // Enable /_samgate/openapi.json and /_samgate/docs/
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	SAMGATE_TEMPLATE_PATH       - Template file path (required)
//	SAMGATE_TEMPLATE_STAGE      - Stage name override
//	SAMGATE_TEMPLATE_GATEWAY_ID - API resource logical ID
//	SAMGATE_TEMPLATE_PARAMETERS - Parameter overrides (Name=Value,Name=Value)
//	SAMGATE_TEMPLATE_WATCH      - Rebuild on template change (default: false)
//	SAMGATE_SERVER_HOST         - Server host (default: 0.0.0.0)
//	SAMGATE_SERVER_PORT         - Server port (default: 3000)
//	SAMGATE_FUNCTIONS_ENDPOINTS - Container endpoints (ref=url,ref=url)
//	SAMGATE_FUNCTIONS_TIMEOUT   - Invocation timeout (default: 30s)
//	SAMGATE_CACHE_BACKEND       - Cache backend: memory, sqlite, none
//	SAMGATE_AUTH_MODE           - Auth mode: none, jwt, apikey (default: none)
//	SAMGATE_LOG_LEVEL           - Log level: debug, info, warn, error (default: info)
//	SAMGATE_LOG_FORMAT          - Log format: json or console (default: json)
//	SAMGATE_METRICS_ENABLED     - Enable /metrics endpoint
//	SAMGATE_DOCS_ENABLED        - Enable OpenAPI/Swagger endpoints
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
// This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	// Try loading from file first
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	// Check if we have enough env vars to run
	if os.Getenv("SAMGATE_TEMPLATE_PATH") != "" {
		return LoadFromEnv()
	}

	// No config available
	return nil, fmt.Errorf("no configuration found: provide config file or set SAMGATE_TEMPLATE_PATH")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("SAMGATE_TEMPLATE_PATH") != ""
}

// applyEnvOverrides applies SAMGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("SAMGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SAMGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SAMGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SAMGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Template configuration
	if v := os.Getenv("SAMGATE_TEMPLATE_PATH"); v != "" {
		cfg.Template.Path = v
	}
	if v := os.Getenv("SAMGATE_TEMPLATE_STAGE"); v != "" {
		cfg.Template.Stage = v
	}
	if v := os.Getenv("SAMGATE_TEMPLATE_GATEWAY_ID"); v != "" {
		cfg.Template.GatewayID = v
	}
	if v := os.Getenv("SAMGATE_TEMPLATE_PARAMETERS"); v != "" {
		if m := parsePairs(v); len(m) > 0 {
			if cfg.Template.Parameters == nil {
				cfg.Template.Parameters = make(map[string]string)
			}
			for k, val := range m {
				cfg.Template.Parameters[k] = val
			}
		}
	}
	if v := os.Getenv("SAMGATE_TEMPLATE_WATCH"); v != "" {
		cfg.Template.Watch = parseBool(v)
	}

	// Functions configuration
	if v := os.Getenv("SAMGATE_FUNCTIONS_ENDPOINTS"); v != "" {
		if m := parsePairs(v); len(m) > 0 {
			if cfg.Functions.Endpoints == nil {
				cfg.Functions.Endpoints = make(map[string]string)
			}
			for k, val := range m {
				cfg.Functions.Endpoints[k] = val
			}
		}
	}
	if v := os.Getenv("SAMGATE_FUNCTIONS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Functions.Timeout = d
		}
	}

	// Cache configuration
	if v := os.Getenv("SAMGATE_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("SAMGATE_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("SAMGATE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	// Auth configuration
	if v := os.Getenv("SAMGATE_AUTH_MODE"); v != "" {
		cfg.Auth.Mode = v
	}
	if v := os.Getenv("SAMGATE_AUTH_HEADER"); v != "" {
		cfg.Auth.Header = v
	}
	if v := os.Getenv("SAMGATE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Docs configuration
	if v := os.Getenv("SAMGATE_DOCS_ENABLED"); v != "" {
		cfg.Docs.Enabled = parseBool(v)
	}

	// Metrics configuration
	if v := os.Getenv("SAMGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SAMGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Logging configuration
	if v := os.Getenv("SAMGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SAMGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// parsePairs parses "key=value,key=value" lists. Malformed entries are
// skipped.
func parsePairs(v string) map[string]string {
	m := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			continue
		}
		m[key] = val
	}
	return m
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Functions.Timeout == 0 {
		cfg.Functions.Timeout = 30 * time.Second
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.Backend == "sqlite" && cfg.Cache.Path == "" {
		cfg.Cache.Path = "samgate.db"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "none"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Template.Path == "" {
		return fmt.Errorf("template.path is required")
	}

	validAuthModes := map[string]bool{"none": true, "jwt": true, "apikey": true}
	if !validAuthModes[cfg.Auth.Mode] {
		return fmt.Errorf("auth.mode must be 'none', 'jwt' or 'apikey', got %q", cfg.Auth.Mode)
	}
	if cfg.Auth.Mode == "jwt" && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.mode is 'jwt'")
	}
	if cfg.Auth.Mode == "apikey" && len(cfg.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys is required when auth.mode is 'apikey'")
	}

	validCacheBackends := map[string]bool{"none": true, "memory": true, "sqlite": true}
	if !validCacheBackends[cfg.Cache.Backend] {
		return fmt.Errorf("cache.backend must be 'none', 'memory' or 'sqlite', got %q", cfg.Cache.Backend)
	}

	for ref, base := range cfg.Functions.Endpoints {
		if ref == "" {
			return fmt.Errorf("functions.endpoints keys must be handler references or prefixes")
		}
		if base == "" {
			return fmt.Errorf("functions.endpoints[%s] is empty", ref)
		}
	}

	return nil
}

// ListenAddr joins the configured host and port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
