package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig
	Dry     DryConfig
	Log     LogConfig
	Store   StoreConfig
	Admin   AdminConfig
	Tracing TracingConfig
}

// ServerConfig contains public HTTP server configuration
type ServerConfig struct {
	Host      string
	Port      int
	BodyLimit int
	TLS       TLSConfig
}

// TLSConfig contains TLS/SSL configuration
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// DryConfig contains settings of the dry resource
type DryConfig struct {
	Path      string
	RecordTTL time.Duration
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects and tunes the key-value engine
type StoreConfig struct {
	Type          string // "memory", "badger", "bolt"
	DataDir       string
	SyncWrites    bool
	SweepInterval time.Duration
}

// AdminConfig contains the metrics and health listener configuration
type AdminConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// TracingConfig contains OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
	InsecureConn   bool
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:      getEnvString("DROPPY_HOST", ""),
			Port:      getEnvInt("DROPPY_PORT", 8787),
			BodyLimit: getEnvInt("DROPPY_BODY_LIMIT", 64*1024),
			TLS: TLSConfig{
				Enabled:  getEnvBool("DROPPY_TLS_ENABLED", false),
				CertFile: getEnvString("DROPPY_TLS_CERT_FILE", ""),
				KeyFile:  getEnvString("DROPPY_TLS_KEY_FILE", ""),
			},
		},
		Dry: DryConfig{
			Path:      getEnvString("DROPPY_RESOURCE_PATH", "/dry"),
			RecordTTL: getEnvDuration("DROPPY_RECORD_TTL", 300*time.Second),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnvString("DROPPY_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnvString("DROPPY_LOG_FORMAT", "text")),
		},
		Store: StoreConfig{
			Type:          strings.ToLower(getEnvString("DROPPY_STORE_TYPE", "memory")),
			DataDir:       getEnvString("DROPPY_DATA_DIR", "./data"),
			SyncWrites:    getEnvBool("DROPPY_SYNC_WRITES", true),
			SweepInterval: getEnvDuration("DROPPY_SWEEP_INTERVAL", time.Minute),
		},
		Admin: AdminConfig{
			Enabled: getEnvBool("DROPPY_ADMIN_ENABLED", true),
			Host:    getEnvString("DROPPY_ADMIN_HOST", ""),
			Port:    getEnvInt("DROPPY_ADMIN_PORT", 9090),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("DROPPY_TRACING_ENABLED", false),
			Endpoint:       getEnvString("DROPPY_TRACING_ENDPOINT", "otel-collector:4318"),
			ServiceName:    getEnvString("DROPPY_TRACING_SERVICE_NAME", "droppy-api"),
			ServiceVersion: getEnvString("DROPPY_TRACING_SERVICE_VERSION", "1.0.0"),
			Environment:    getEnvString("DROPPY_TRACING_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("DROPPY_TRACING_SAMPLING_RATIO", 1.0),
			InsecureConn:   getEnvBool("DROPPY_TRACING_INSECURE", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.BodyLimit < 0 {
		return fmt.Errorf("invalid body limit: %d (must not be negative)", c.Server.BodyLimit)
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert file must be specified when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file must be specified when TLS is enabled")
		}
	}

	if !strings.HasPrefix(c.Dry.Path, "/") {
		return fmt.Errorf("invalid resource path: %q (must start with /)", c.Dry.Path)
	}

	if c.Dry.RecordTTL <= 0 {
		return fmt.Errorf("invalid record TTL: %v (must be positive)", c.Dry.RecordTTL)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	switch c.Store.Type {
	case "memory":
	case "badger", "bolt":
		if c.Store.DataDir == "" {
			return fmt.Errorf("data directory must be specified for %s store", c.Store.Type)
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be memory, badger, or bolt)", c.Store.Type)
	}

	if c.Store.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval: %v (must be positive)", c.Store.SweepInterval)
	}

	if c.Admin.Enabled {
		if c.Admin.Port <= 0 || c.Admin.Port > 65535 {
			return fmt.Errorf("invalid admin port: %d (must be 1-65535)", c.Admin.Port)
		}
		if c.Admin.Port == c.Server.Port && hostsOverlap(c.Admin.Host, c.Server.Host) {
			return fmt.Errorf("admin listener must not share the public address %s", c.Address())
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing endpoint must be specified when tracing is enabled")
		}
		if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
			return fmt.Errorf("invalid tracing sampling ratio: %v (must be 0-1)", c.Tracing.SamplingRatio)
		}
	}

	return nil
}

// Address returns the public server address in host:port format
func (c *Config) Address() string {
	return joinHostPort(c.Server.Host, c.Server.Port)
}

// AdminAddress returns the admin listener address in host:port format
func (c *Config) AdminAddress() string {
	return joinHostPort(c.Admin.Host, c.Admin.Port)
}

// hostsOverlap reports whether listeners on a and b with the same port
// would collide. A wildcard host binds every interface.
func hostsOverlap(a, b string) bool {
	return a == b || isWildcardHost(a) || isWildcardHost(b)
}

func isWildcardHost(host string) bool {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		return true
	}
	return false
}

func joinHostPort(host string, port int) string {
	if host == "" {
		return fmt.Sprintf(":%d", port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
