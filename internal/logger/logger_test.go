// internal/logger/logger_test.go - Unit tests for logger setup
package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/valpere/wgs_correction/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
		want zerolog.Level
	}{
		{"default", config.LoggingConfig{}, zerolog.InfoLevel},
		{"warn", config.LoggingConfig{Level: "warn"}, zerolog.WarnLevel},
		{"upper case", config.LoggingConfig{Level: "ERROR"}, zerolog.ErrorLevel},
		{"verbose lowers level", config.LoggingConfig{Level: "warn", Verbose: true}, zerolog.DebugLevel},
		{"verbose keeps trace", config.LoggingConfig{Level: "trace", Verbose: true}, zerolog.TraceLevel},
		{"invalid falls back", config.LoggingConfig{Level: "loud"}, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.cfg, &bytes.Buffer{})
			if l.GetLevel() != tt.want {
				t.Errorf("Expected level %v, got %v", tt.want, l.GetLevel())
			}
		})
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	l.Info().Str("input", "roads.shp").Msg("correcting")

	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"input":"roads.shp"`) {
		t.Errorf("Expected JSON log line, got %q", out)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	l.Debug().Msg("hidden")
	l.Warn().Msg("projected")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Debug message should be filtered at info level")
	}
	if !strings.Contains(out, "projected") || strings.HasPrefix(out, "{") {
		t.Errorf("Expected console formatted line, got %q", out)
	}
}
