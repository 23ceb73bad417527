// Package logger builds the zap loggers used across the service.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development logger (console, debug level) when appEnv is
// "development" and a production JSON logger otherwise.
func New(appEnv string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(appEnv, "development") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}

// NewNamed returns New(appEnv) tagged with a service name field
func NewNamed(appEnv, name string) (*zap.Logger, error) {
	log, err := New(appEnv)
	if err != nil {
		return nil, err
	}
	return log.Named(name).With(zap.String("service", name)), nil
}
