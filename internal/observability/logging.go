// Package observability builds the server's zap logger and Prometheus collectors.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chess-session/internal/config"
)

var baseConfigs = map[string]func() zap.Config{
	"json":    zap.NewProductionConfig,
	"console": zap.NewDevelopmentConfig,
}

// NewLogger returns a logger at cfg.Level writing cfg.Format, tagged with the service name.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	base, ok := baseConfigs[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("log format %q: want json or console", cfg.Format)
	}

	zc := base()
	zc.Level = level
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.InitialFields = map[string]interface{}{"service": "chess-session"}
	return zc.Build()
}
