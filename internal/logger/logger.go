// Package logger provides leveled structured logging.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "putscout"

var defaultLogger *zap.Logger

// Init initializes the default logger with the specified level and format.
// Format "text" selects the console encoder; anything else logs JSON.
func Init(level string, format string) {
	var l zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		l = zapcore.DebugLevel
	case "warn":
		l = zapcore.WarnLevel
	case "error":
		l = zapcore.ErrorLevel
	default:
		l = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.ToLower(format) == "text" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), l)
	Use(zap.New(core, zap.AddCaller()))
}

// Use replaces the default logger. Tests hand in an observer core here.
func Use(l *zap.Logger) {
	defaultLogger = l.WithOptions(zap.AddCallerSkip(1)).With(zap.String("service", serviceName))
}

// Sync flushes buffered entries.
func Sync() {
	if defaultLogger != nil {
		_ = defaultLogger.Sync()
	}
}

// enabled reports whether an entry at lvl would be written, so disabled
// levels skip formatting their arguments.
func enabled(lvl zapcore.Level) bool {
	return defaultLogger != nil && defaultLogger.Core().Enabled(lvl)
}

func Debug(format string, args ...interface{}) {
	if enabled(zapcore.DebugLevel) {
		defaultLogger.Debug(fmt.Sprintf(format, args...))
	}
}

func Info(format string, args ...interface{}) {
	if enabled(zapcore.InfoLevel) {
		defaultLogger.Info(fmt.Sprintf(format, args...))
	}
}

func Warn(format string, args ...interface{}) {
	if enabled(zapcore.WarnLevel) {
		defaultLogger.Warn(fmt.Sprintf(format, args...))
	}
}

func Error(format string, args ...interface{}) {
	if enabled(zapcore.ErrorLevel) {
		defaultLogger.Error(fmt.Sprintf(format, args...))
	}
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if defaultLogger != nil {
		defaultLogger.Error(msg)
		_ = defaultLogger.Sync()
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}
