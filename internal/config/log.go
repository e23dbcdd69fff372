package config

import (
	"context"
	"fmt"
	"io"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

var logger = logrus.StandardLogger()

// SetupLogger configures the package logger from cfg and directs it to w.
func SetupLogger(cfg *Config, w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	if cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger = l
	return l, nil
}

// Logger returns the package logger.
func Logger() *logrus.Logger {
	return logger
}

// WithContext returns a log entry tagged with the request ID carried by ctx,
// if any.
func WithContext(ctx context.Context) logrus.FieldLogger {
	if id := middleware.GetReqID(ctx); id != "" {
		return logger.WithField("request_id", id)
	}
	return logger
}
