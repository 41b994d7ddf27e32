package config

import (
	"bufio"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/user/proxy-relay-go/internal/pkg/paths"
	_ "modernc.org/sqlite"
)

// Settings keys shared with repository.SettingsRepository.
const (
	KeyRelayHost = "relay.host"
	KeyRelayPort = "relay.port"
	KeyProxyHost = "proxy.host"
	KeyProxyPort = "proxy.port"
)

// Load loads configuration with 3-tier priority:
// Environment variables > SQLite settings table > Default values
func Load() (*Config, error) {
	// Load .env file if exists
	loadDotEnv(filepath.Join(paths.GetBasePath(), ".env"))

	cfg := DefaultConfig()
	cfg.Database.Path = paths.GetDBPath()

	if err := loadFromDatabase(cfg); err != nil {
		log.Printf("WARN: Failed to load config from database: %v", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv reads KEY=VALUE lines. Variables already set in the environment win.
func loadDotEnv(envFile string) {
	f, err := os.Open(envFile)
	if err != nil {
		return // .env file is optional
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = trimQuotes(strings.TrimSpace(val))
		if key == "" {
			continue
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// loadFromDatabase applies values saved in the settings table.
func loadFromDatabase(cfg *Config) error {
	dbPath := cfg.Database.Path
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil // Database doesn't exist yet, use defaults
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return applySettings(db, cfg)
}

func applySettings(db *sql.DB, cfg *Config) error {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		switch key {
		case KeyRelayHost:
			cfg.Relay.Host = value
		case KeyRelayPort:
			if n, err := strconv.Atoi(value); err == nil {
				cfg.Relay.Port = n
			}
		case KeyProxyHost:
			cfg.Proxy.Host = value
		case KeyProxyPort:
			if n, err := strconv.Atoi(value); err == nil {
				cfg.Proxy.Port = n
			}
		}
	}
	return rows.Err()
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	// Relay
	cfg.Relay.Host = getEnvStr("PROXY_RELAY_HOST", cfg.Relay.Host)
	cfg.Relay.Port = getEnvInt("PROXY_RELAY_PORT", cfg.Relay.Port)
	cfg.Relay.IdleTimeout = getEnvDuration("PROXY_RELAY_IDLE_TIMEOUT", cfg.Relay.IdleTimeout)
	cfg.Relay.ShutdownGrace = getEnvDuration("PROXY_RELAY_SHUTDOWN_GRACE", cfg.Relay.ShutdownGrace)
	cfg.Relay.ReadBufferSize = getEnvInt("PROXY_RELAY_READ_BUFFER_SIZE", cfg.Relay.ReadBufferSize)

	// Intercepting proxy
	cfg.Proxy.Host = getEnvStr("PROXY_RELAY_PROXY_HOST", cfg.Proxy.Host)
	cfg.Proxy.Port = getEnvInt("PROXY_RELAY_PROXY_PORT", cfg.Proxy.Port)
	cfg.Proxy.MITM = getEnvBool("PROXY_RELAY_PROXY_MITM", cfg.Proxy.MITM)
	cfg.Proxy.AutoStart = getEnvBool("PROXY_RELAY_PROXY_AUTOSTART", cfg.Proxy.AutoStart)
	cfg.Proxy.Verbose = getEnvBool("PROXY_RELAY_PROXY_VERBOSE", cfg.Proxy.Verbose)
	cfg.Proxy.RelayAddr = getEnvStr("PROXY_RELAY_PRODUCER_ADDR", cfg.Proxy.RelayAddr)
	cfg.Proxy.DialTimeout = getEnvDuration("PROXY_RELAY_PRODUCER_DIAL_TIMEOUT", cfg.Proxy.DialTimeout)

	// Viewer API
	cfg.API.Enabled = getEnvBool("PROXY_RELAY_API_ENABLED", cfg.API.Enabled)
	cfg.API.Host = getEnvStr("PROXY_RELAY_API_HOST", cfg.API.Host)
	cfg.API.Port = getEnvInt("PROXY_RELAY_API_PORT", cfg.API.Port)

	if dbPath := os.Getenv("PROXY_RELAY_DB"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Log rotation config
	cfg.LogRotation.MaxSizeMB = getEnvInt("PROXY_RELAY_LOG_MAX_SIZE_MB", cfg.LogRotation.MaxSizeMB)
	cfg.LogRotation.MaxBackups = getEnvInt("PROXY_RELAY_LOG_MAX_BACKUPS", cfg.LogRotation.MaxBackups)
	cfg.LogRotation.MaxAgeDays = getEnvInt("PROXY_RELAY_LOG_MAX_AGE_DAYS", cfg.LogRotation.MaxAgeDays)
	cfg.LogRotation.Compress = getEnvBool("PROXY_RELAY_LOG_COMPRESS", cfg.LogRotation.Compress)

	cfg.LogLevel = getEnvStr("LOG_LEVEL", cfg.LogLevel)
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
