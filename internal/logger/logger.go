// Package logger configures the process-wide logrus logger.
package logger

import (
	"os"
	"strings"

	"github.com/alumnijourney/apiserver/config"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout at the configured level and format.
// An unknown level falls back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	switch strings.ToLower(cfg.Format) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
