package logger

import (
	"fmt"

	"github.com/straye-as/pipeline-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Production and an explicit "json"
// format get the JSON encoder; everything else gets colored console output.
// An unparseable level falls back to info and is reported once on the new
// logger.
func NewLogger(cfg *config.LoggingConfig, app *config.AppConfig) (*zap.Logger, error) {
	zapCfg := baseConfig(cfg.Format, app.Environment)

	level, levelErr := zapcore.ParseLevel(cfg.Level)
	if levelErr != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]interface{}{
		"service":     app.Name,
		"environment": app.Environment,
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if levelErr != nil {
		log.Warn("unknown log level, using info", zap.String("level", cfg.Level))
	}
	return log, nil
}

func baseConfig(format, environment string) zap.Config {
	if format == "json" || environment == "production" {
		c := zap.NewProductionConfig()
		c.EncoderConfig.TimeKey = "ts"
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return c
	}
	c := zap.NewDevelopmentConfig()
	c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	c.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	return c
}
