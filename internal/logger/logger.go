// internal/logger/logger.go - Structured logging setup
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/valpere/wgs_correction/internal/config"
)

// Setup configures the global zerolog logger and returns it
func Setup(cfg config.LoggingConfig) zerolog.Logger {
	l := New(cfg, writerFor(cfg.Output))
	log.Logger = l
	zerolog.SetGlobalLevel(l.GetLevel())
	return l
}

// New builds a logger writing to w without touching global state
func New(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	if !strings.EqualFold(cfg.Format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func writerFor(output string) io.Writer {
	if strings.EqualFold(output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}
