package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. Debug mode uses the console encoder
// at debug level; otherwise JSON at info level.
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Sampling = nil
	}
	cfg.DisableStacktrace = !debug
	return cfg.Build()
}

// Must is New that falls back to a no-op logger
func Must(debug bool) *zap.Logger {
	log, err := New(debug)
	if err != nil {
		return zap.NewNop()
	}
	return log
}
