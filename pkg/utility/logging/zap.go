package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewDevLogger() *zap.Logger {
	return must(build(zap.NewDevelopmentConfig(), ""))
}

func NewProdLogger() *zap.Logger {
	return must(build(zap.NewProductionConfig(), ""))
}

// NewLogger builds the production logger unless dev is set. An empty level
// keeps the preset default.
func NewLogger(dev bool, level string) (*zap.Logger, error) {
	if dev {
		return build(zap.NewDevelopmentConfig(), level)
	}
	return build(zap.NewProductionConfig(), level)
}

func build(cfg zap.Config, level string) (*zap.Logger, error) {
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("unable to parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

func must(logger *zap.Logger, err error) *zap.Logger {
	if err != nil {
		panic(err)
	}
	return logger
}
