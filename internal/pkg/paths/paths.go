// Package paths provides path management for different runtime environments.
// Supports development mode (go run) and binary mode.
package paths

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	basePath string
	dataPath string
	once     sync.Once
)

// IsBinaryMode returns true if running as a compiled binary (not go run).
func IsBinaryMode() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	// go run creates temp binaries in /tmp or similar
	return !strings.HasPrefix(exe, os.TempDir())
}

// GetBasePath returns the base path for the application.
// In dev mode: the module root (the nearest directory holding go.mod)
// In binary mode: the directory containing the executable
func GetBasePath() string {
	once.Do(initPaths)
	return basePath
}

// GetDataPath returns the data directory path.
// Creates the directory if it doesn't exist.
func GetDataPath() string {
	once.Do(initPaths)
	return dataPath
}

// GetDBPath returns the full path to the SQLite settings database.
func GetDBPath() string {
	// Allow override via environment variable
	if dbPath := os.Getenv("PROXY_RELAY_DB"); dbPath != "" {
		return dbPath
	}
	return filepath.Join(GetDataPath(), "proxy-relay.db")
}

func initPaths() {
	if IsBinaryMode() {
		exe, _ := os.Executable()
		basePath = filepath.Dir(exe)
	} else {
		wd, _ := os.Getwd()
		basePath = findModuleRoot(wd)
	}

	if dp := os.Getenv("PROXY_RELAY_DATA_DIR"); dp != "" {
		dataPath = dp
	} else {
		dataPath = filepath.Join(basePath, "data")
	}

	_ = os.MkdirAll(dataPath, 0755)
}

// findModuleRoot walks up from start looking for go.mod.
func findModuleRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, return current working directory
			return start
		}
		dir = parent
	}
}
