// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/proxy-relay-go/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level    string
	Dir      string
	FileName string
	Rotation config.LogRotationConfig
	// Console enables the stdout/stderr cores. Disable it while a
	// full-screen UI owns the terminal.
	Console bool
	// Extra cores are teed with the file and console cores.
	Extra []zapcore.Core
}

// ParseLevel maps a config level name to a zap level, defaulting to INFO.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zap.DebugLevel
	case "WARN", "WARNING":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// FilePath returns the log file New writes to.
func (o Options) FilePath() string {
	return filepath.Join(o.Dir, o.FileName)
}

// New builds a logger that writes JSON to a rotated file and, optionally,
// human-readable lines to the console.
func New(opts Options) (*zap.Logger, error) {
	zapLevel := ParseLevel(opts.Level)

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", opts.Dir, err)
	}

	lj := &lumberjack.Logger{
		Filename:   opts.FilePath(),
		MaxSize:    opts.Rotation.MaxSizeMB,
		MaxBackups: opts.Rotation.MaxBackups,
		MaxAge:     opts.Rotation.MaxAgeDays,
		Compress:   opts.Rotation.Compress,
	}

	// File core: JSON encoder for structured log parsing
	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.TimeKey = "ts"
	fileEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderCfg),
			zapcore.AddSync(lj),
			zapLevel,
		),
	}

	if opts.Console {
		consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
		consoleEncoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderCfg)

		// stdout for DEBUG/INFO, stderr for WARN/ERROR+
		cores = append(cores,
			zapcore.NewCore(
				consoleEncoder,
				zapcore.Lock(os.Stdout),
				zap.LevelEnablerFunc(func(l zapcore.Level) bool {
					return l >= zapLevel && l < zapcore.WarnLevel
				}),
			),
			zapcore.NewCore(
				consoleEncoder,
				zapcore.Lock(os.Stderr),
				zap.LevelEnablerFunc(func(l zapcore.Level) bool {
					return l >= zapLevel && l >= zapcore.WarnLevel
				}),
			),
		)
	}
	cores = append(cores, opts.Extra...)

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	), nil
}

// Dir returns the log directory from PROXY_RELAY_LOGS_DIR, or "logs".
func Dir() string {
	if dir := os.Getenv("PROXY_RELAY_LOGS_DIR"); dir != "" {
		return dir
	}
	return "logs"
}
