// Package config provides configuration management with 3-tier priority:
// Environment variables > SQLite settings table > Default values
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Relay       RelayConfig
	Proxy       ProxyConfig
	API         APIConfig
	Database    DatabaseConfig
	LogRotation LogRotationConfig
	LogLevel    string
}

// RelayConfig holds the inbound log-relay listener settings.
// It is immutable once the relay has started.
type RelayConfig struct {
	Host string
	Port int
	// MaxPending is fixed at 1: a second producer is reset while one is connected.
	MaxPending int
	// IdleTimeout closes a connection that sends nothing for this long. Zero disables it.
	IdleTimeout time.Duration
	// ShutdownGrace bounds how long shutdown waits for an in-flight connection to drain.
	ShutdownGrace  time.Duration
	ReadBufferSize int
}

// Address returns host:port for the relay listener.
func (c RelayConfig) Address() string {
	return joinHostPort(c.Host, c.Port)
}

// ProxyConfig holds the intercepting proxy settings.
type ProxyConfig struct {
	Host      string
	Port      int
	MITM      bool // intercept HTTPS CONNECT tunnels
	AutoStart bool
	Verbose   bool
	// RelayAddr is where intercepted requests are sent. Empty means the local relay.
	RelayAddr   string
	DialTimeout time.Duration
}

// APIConfig holds the viewer HTTP API settings.
type APIConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// Address returns host:port for the viewer API.
func (c APIConfig) Address() string {
	return joinHostPort(c.Host, c.Port)
}

// DatabaseConfig holds the settings database location.
type DatabaseConfig struct {
	Path string
}

// LogRotationConfig holds log rotation settings powered by lumberjack.
type LogRotationConfig struct {
	MaxSizeMB  int  // Maximum size in MB before rotation
	MaxBackups int  // Maximum number of old log files to retain
	MaxAgeDays int  // Maximum number of days to retain old log files
	Compress   bool // Whether to gzip compress rotated files
}

// DefaultRelayPort is the well-known port producers connect to.
const DefaultRelayPort = 54321

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Relay: RelayConfig{
			Host:           "127.0.0.1",
			Port:           DefaultRelayPort,
			MaxPending:     1,
			IdleTimeout:    30 * time.Second,
			ShutdownGrace:  5 * time.Second,
			ReadBufferSize: 64 * 1024,
		},
		Proxy: ProxyConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			MITM:        true,
			AutoStart:   false,
			DialTimeout: 2 * time.Second,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8054,
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		LogLevel: "INFO",
	}
}

// ProducerAddr returns the address the proxy sends intercepted requests to.
func (c *Config) ProducerAddr() string {
	if c.Proxy.RelayAddr != "" {
		return c.Proxy.RelayAddr
	}
	host := c.Relay.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return joinHostPort(host, c.Relay.Port)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Relay.Port < 0 || c.Relay.Port > 65535 {
		return &ConfigError{Field: "relay.port", Message: "must be between 0 and 65535"}
	}
	if c.Relay.MaxPending != 1 {
		return &ConfigError{Field: "relay.max_pending", Message: "only a single pending connection is supported"}
	}
	if c.Relay.IdleTimeout < 0 {
		return &ConfigError{Field: "relay.idle_timeout", Message: "must not be negative"}
	}
	if c.Relay.ShutdownGrace < 0 {
		return &ConfigError{Field: "relay.shutdown_grace", Message: "must not be negative"}
	}
	if c.Relay.ReadBufferSize < 16 {
		return &ConfigError{Field: "relay.read_buffer_size", Message: "must be at least 16 bytes"}
	}
	if c.Proxy.Port < 1 || c.Proxy.Port > 65535 {
		return &ConfigError{Field: "proxy.port", Message: "must be between 1 and 65535"}
	}
	if c.Proxy.DialTimeout <= 0 {
		return &ConfigError{Field: "proxy.dial_timeout", Message: "must be positive"}
	}
	if c.API.Enabled && (c.API.Port < 0 || c.API.Port > 65535) {
		return &ConfigError{Field: "api.port", Message: "must be between 0 and 65535"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + ": " + e.Message
}

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + strconv.Itoa(port)
	}
	return host + ":" + strconv.Itoa(port)
}

// Helper functions for environment variable parsing.

func getEnvStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	lower := strings.ToLower(v)
	return lower == "true" || lower == "1" || lower == "yes" || lower == "on"
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds ("30").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
