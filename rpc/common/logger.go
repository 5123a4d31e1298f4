package common

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --------------------------------------------------------------------------
// Logging (zap based, shared by all rpc packages)
// --------------------------------------------------------------------------

var (
	loggerOnce sync.Once
	rootLogger *zap.Logger
	logLevel   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initRootLogger builds the shared console logger. The level is controlled
// at runtime via the atomic level, so InitLoggers can be called after the
// first GetLogger.
func initRootLogger() {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		logLevel,
	)

	rootLogger = zap.New(core)
}

// GetLogger returns a named sugared logger, e.g. GetLogger("transport").
func GetLogger(name string) *zap.SugaredLogger {
	loggerOnce.Do(initRootLogger)
	return rootLogger.Named(name).Sugar()
}

// ParseLogLevel converts a string level to a zapcore.Level.
func ParseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// InitLoggers applies the configured log level to all named loggers.
func InitLoggers(logLevelStr string) error {
	level, err := ParseLogLevel(logLevelStr)
	if err != nil {
		return err
	}
	logLevel.SetLevel(level)
	return nil
}

// SyncLoggers flushes buffered log entries. Called on shutdown.
func SyncLoggers() {
	if rootLogger != nil {
		_ = rootLogger.Sync()
	}
}
