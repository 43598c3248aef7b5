// Package logging constructs the process-wide zap logger and the
// critical-log helper used for programmer errors that must not crash
// the process (spec.md §7).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style JSON logger, or a console logger at
// debug level when debug is set. Callers pass it down by
// reference; nothing in this module reaches for a package-level
// global logger mid-request.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Development = true
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}

// Critical logs a structural-but-nonfatal programmer error: a caller
// invoked an operation against an entry of the wrong kind (e.g.
// SetMinPeriod on a non-Observation). The operation still fails for its
// caller (an error from a setter, a neutral default from a getter);
// this call only records that it happened.
func Critical(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.WithOptions(zap.AddCallerSkip(1)).Error("programmer error: "+msg, fields...)
}
