// Package observability provides structured logging, metrics and tracing
// for nodemap.
//
// Features:
//   - Structured logging via zap, with optional rotating file output
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string
	// File enables a rotating JSON log file in addition to the console.
	File string
	// JSON selects JSON console output instead of the human format.
	JSON bool
}

// NewLogger builds a zap logger writing to stderr and, when cfg.File is set,
// to a size-rotated JSON file.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	consoleEncoder := jsonEncoder
	if !cfg.JSON {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// EnrichLogger adds the graph id to every entry of the returned logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "42")
//	enriched.Info("saving") // includes graph_id
func EnrichLogger(logger *zap.Logger, graphID string) *zap.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(zap.String("graph_id", graphID))
}

// LogOperationStart logs the start of a remote operation.
func LogOperationStart(logger *zap.Logger, op, graphID string) {
	if logger == nil {
		return
	}
	logger.Debug("operation starting",
		zap.String("op", op),
		zap.String("graph_id", graphID),
	)
}

// LogOperationComplete logs a successful remote operation.
func LogOperationComplete(logger *zap.Logger, op, graphID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("operation completed",
		zap.String("op", op),
		zap.String("graph_id", graphID),
		zap.Float64("duration_ms", durationMs),
	)
}

// LogOperationError logs a failed remote operation.
func LogOperationError(logger *zap.Logger, op, graphID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("operation failed",
		zap.String("op", op),
		zap.String("graph_id", graphID),
		zap.String("error", err.Error()),
		zap.Float64("duration_ms", durationMs),
	)
}

// LogStaleDiscard logs a remote result dropped because the selection moved on.
func LogStaleDiscard(logger *zap.Logger, op, graphID string) {
	if logger == nil {
		return
	}
	logger.Debug("stale response discarded",
		zap.String("op", op),
		zap.String("graph_id", graphID),
	)
}

// LogSaveSkipped logs a save that was not attempted.
func LogSaveSkipped(logger *zap.Logger, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("save skipped",
		zap.String("reason", reason),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
